package refcache

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// seedBroker/seedAccount/seedRoute/seedCopyRule mirror the YAML shape
// of the reference-data seed file, decoded with viper the way
// polymarket-mm decodes its own YAML configuration.
type seedBroker struct {
	Name   string `mapstructure:"name"`
	Code   string `mapstructure:"code"`
	Active bool   `mapstructure:"active"`
}

type seedAccount struct {
	Number      string `mapstructure:"number"`
	Type        string `mapstructure:"type"`
	BrokerCode  string `mapstructure:"brokerCode"`
	StrategyKey string `mapstructure:"strategyKey"`
	Active      bool   `mapstructure:"active"`
}

type seedRoute struct {
	Name          string `mapstructure:"name"`
	BrokerCode    string `mapstructure:"brokerCode"`
	RouteType     string `mapstructure:"routeType"`
	IsLocateRoute bool   `mapstructure:"isLocateRoute"`
	Priority      int    `mapstructure:"priority"`
}

type seedCopyRule struct {
	PrimaryAccount string          `mapstructure:"primaryAccount"`
	ShadowAccount  string          `mapstructure:"shadowAccount"`
	RatioType      string          `mapstructure:"ratioType"`
	RatioValue     decimal.Decimal `mapstructure:"ratioValue"`
	OrderTypes     []string        `mapstructure:"orderTypes"`
	CopyRoute      string          `mapstructure:"copyRoute"`
	LocateRoute    string          `mapstructure:"locateRoute"`
	CopyBroker     string          `mapstructure:"copyBroker"`
	MinQuantity    decimal.Decimal `mapstructure:"minQuantity"`
	MaxQuantity    decimal.Decimal `mapstructure:"maxQuantity"`
	Priority       int             `mapstructure:"priority"`
	Active         bool            `mapstructure:"active"`
}

type seedDocument struct {
	Brokers   []seedBroker   `mapstructure:"brokers"`
	Accounts  []seedAccount  `mapstructure:"accounts"`
	Routes    []seedRoute    `mapstructure:"routes"`
	CopyRules []seedCopyRule `mapstructure:"copyRules"`
}

func loadSeed(path string) (seedDocument, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	var doc seedDocument
	if err := v.ReadInConfig(); err != nil {
		return doc, err
	}
	if err := v.Unmarshal(&doc, viper.DecodeHook(decimalDecodeHook)); err != nil {
		return doc, err
	}
	return doc, nil
}
