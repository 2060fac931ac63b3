package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"autotrader/cmd/keys"
	"autotrader/cmd/ohlcvcrypto"
	"autotrader/cmd/report"
	"autotrader/cmd/trader"
	"autotrader/src/database"
	"autotrader/src/marketdata"
	"autotrader/src/repository"
	"autotrader/src/security"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "autotrader"
	app.Usage = "The autotrader command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		traderCMD,
		ohlcvCryptoCMD,
		reportCMD,
		keysCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	traderCMD = cli.Command{
		Name:        "trader",
		Usage:       "run the trading supervisor",
		Action:      traderAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run one control loop per configured symbol and serve their state`,
	}
	ohlcvCryptoCMD = cli.Command{
		Name:        "ohlcv_crypto",
		Usage:       "run OHLCV crypto",
		Action:      ohlcvCryptoAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Import Binance candles into the OHLCV tables`,
	}
	reportCMD = cli.Command{
		Name:      "report",
		Usage:     "print the performance report of a user",
		Action:    reportAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "user", Usage: "user id", EnvVar: "USER_ID"},
			cli.StringFlag{Name: "symbol", Usage: "only this symbol"},
			cli.StringFlag{Name: "from", Usage: "RFC3339 lower bound"},
			cli.StringFlag{Name: "to", Usage: "RFC3339 upper bound"},
		},
		Description: `Summarise the FILLED trade events of a user`,
	}
	keysCMD = cli.Command{
		Name:        "keys",
		Usage:       "encrypt a venue secret",
		Action:      keysAction,
		ArgsUsage:   "[secret]",
		Flags:       []cli.Flag{},
		Description: `Print the enc: value of a secret, read from the argument or KEYS_SECRET`,
	}
)

func traderAction(_ *cli.Context) error {
	logrus.Info("Starting trader CMD")

	t := &trader.Trader{Log: logrus.WithField("cmd", "trader")}
	if err := t.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

// ohlcvCryptoAction will go get OHLCV candles for the configured pair
func ohlcvCryptoAction(_ *cli.Context) error {
	logrus.Info("Starting OHLCV crypto CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}

	config := ohlcvcrypto.GetConfig()
	interval := time.Hour
	if config.DurationStr == ohlcvcrypto.Duration1m {
		interval = time.Minute
	}
	feed, err := marketdata.NewBinanceFeed(config.BinanceEndpoint, config.BinanceTimeout, interval)
	if err != nil {
		return err
	}
	_ohlcv := &ohlcvcrypto.OHLCVCrypto{
		Log:    logrus.WithField("cmd", "ohlcv_crypto"),
		Feed:   feed,
		Repo:   repository.NewOHLCVRepository(),
		Config: config,
	}

	if err := _ohlcv.Start(context.Background()); err != nil {
		logrus.WithError(err).Error("Starting OHLCV cmd")
		return err
	}
	return nil
}

func reportAction(c *cli.Context) error {
	opts := report.Options{UserID: c.String("user"), Symbol: c.String("symbol")}
	for _, b := range []struct {
		name string
		dst  **time.Time
	}{{"from", &opts.From}, {"to", &opts.To}} {
		v := c.String(b.name)
		if v == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", b.name, err)
		}
		*b.dst = &parsed
	}

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}
	r := &report.Report{
		Log:    logrus.WithField("cmd", "report"),
		Events: repository.NewTradeEventRepository(),
		Out:    os.Stdout,
	}
	_, err := r.Run(context.Background(), opts)
	return err
}

func keysAction(c *cli.Context) error {
	cipher, err := security.NewCipherFromConfig()
	if err != nil {
		return err
	}
	secret := c.Args().First()
	if secret == "" {
		secret = keys.GetConfig().Secret
	}
	k := &keys.Keys{Log: logrus.WithField("cmd", "keys"), Cipher: cipher, Out: os.Stdout}
	return k.Encrypt(secret)
}
