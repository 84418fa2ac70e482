package main

import "github.com/dualspiral/velocity/pkg/cmd/velocity"

func main() {
	velocity.Main()
}
