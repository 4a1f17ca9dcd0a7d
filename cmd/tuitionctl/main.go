package main

import "github.com/smallbiznis/tuitionledger/internal/cli"

func main() {
	cli.Execute()
}
