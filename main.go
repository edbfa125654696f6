/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/profiles-api/apiserver/cmd"

func main() {
	cmd.Execute()
}
