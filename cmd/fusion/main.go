// Package main is the entry point for the fusion gateway.
package main

func main() {
	Execute()
}
