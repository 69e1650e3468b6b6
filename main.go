package main

import (
	"flint/cmd"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := cmd.App().Execute(); err != nil {
		logrus.Fatal(err)
	}
}
