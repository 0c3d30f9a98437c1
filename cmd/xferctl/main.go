package main

import "github.com/materials-commons/tablexfer/cmd/xferctl/cmd"

func main() {
	cmd.Execute()
}
