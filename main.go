package main

import "github.com/deploymenttheory/go-jffs2/cmd"

func main() {
	cmd.Execute()
}
