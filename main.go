package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"autotrader/cmd/trader"
	"autotrader/src/database"

	logger "github.com/sirupsen/logrus"
)

var APP_NAME = os.Getenv("APP_NAME")

func SetupLogger() {
	config := database.GetConfig()

	level, err := logger.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		level = logger.DebugLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(config.LogFormat, "json") {
		logger.SetFormatter(&logger.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	t := &trader.Trader{Log: logger.WithField("app", APP_NAME)}
	if err := t.Start(); err != nil {
		logger.WithError(err).Error("trader stopped with error")
		os.Exit(1)
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
		//nolint
		time.Sleep(time.Second * 5)
	}
}
