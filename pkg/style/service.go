package style

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Service hands out rules per template, extracting each template's bytes at most once
// while a cache entry for them exists. Concurrent requests for the same bytes share
// one extraction.
type Service struct {
	cache  Cache
	group  singleflight.Group
	logger *zap.SugaredLogger
}

// NewService creates a service over cache. A nil cache uses a MemoryCache.
func NewService(cache Cache, logger *zap.SugaredLogger) (s *Service) {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s = &Service{cache: cache, logger: logger}
	return s
}

// Rules returns the rules for a template, extracting them on a cache miss. Cache
// failures are logged and fall through to extraction.
func (s *Service) Rules(ctx context.Context, owner, client, name string, template []byte) (rules *Rules, err error) {
	if len(template) == 0 {
		rules = DefaultRules()
		return rules, err
	}

	key := NewKey(owner, client, name, template)

	var ok bool
	rules, ok, err = s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warnw("Style cache read failed", "template", name, "error", err)
		err = nil
	}
	if ok {
		s.logger.Debugw("Style rules cache hit", "template", name, "digest", key.Digest)
		return rules, err
	}

	v, sfErr, _ := s.group.Do(key.identity()+"\x00"+key.Digest, func() (interface{}, error) {
		extracted, extractErr := Extract(template)
		if extractErr != nil {
			return nil, extractErr
		}
		putErr := s.cache.Put(ctx, key, extracted)
		if putErr != nil {
			s.logger.Warnw("Style cache write failed", "template", name, "error", putErr)
		}
		s.logger.Debugw("Extracted style rules", "template", name, "sections", len(extracted.Sections))
		return extracted, nil
	})
	if sfErr != nil {
		err = errors.Wrapf(sfErr, "failed to extract style rules for template %q", name)
		return nil, err
	}

	rules = v.(*Rules)
	return rules, err
}

// Invalidate drops cached rules for a template identity.
func (s *Service) Invalidate(ctx context.Context, owner, client, name string) (err error) {
	err = s.cache.Invalidate(ctx, Key{Owner: owner, Client: client, Template: name})
	return err
}
