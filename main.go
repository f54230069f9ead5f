package main

import (
	"guestlist/cmd"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := cmd.Start(); err != nil {
		logrus.WithError(err).Fatal("guest list server stopped")
	}
}
