package main

import "github.com/materials-commons/tablexfer/cmd/xferd/cmd"

func main() {
	cmd.Execute()
}
