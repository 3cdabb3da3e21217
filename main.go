package main

import "github.com/nikogura/doc-reformatter/cmd"

func main() {
	cmd.Execute()
}
