package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	sourceName = "binance"
)

// Client pulls account trade history from Binance futures and exposes it as
// execution records. Implements ports.ExecutionSource.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	symbol        string
	account       string
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Symbol     string // Instrument to pull fills for
	Account    string // Account identifier stamped on ingested executions
	Logger     ports.Logger
}

// New creates a new Binance execution source.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("API key and secret are required to read account trade history")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using global futures.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	account := cfg.Account
	if account == "" {
		account = "default"
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		symbol:        cfg.Symbol,
		account:       account,
	}, nil
}

// Executions lists account trade history for the configured symbol and maps
// each fill into an execution record. Binance reports fragmented fills as
// separate entries with identical time/side/price, which the downstream
// deduplicator collapses.
func (c *Client) Executions(ctx context.Context) ([]*domain.Execution, error) {
	fills, err := c.futuresClient.NewListAccountTradeService().Symbol(c.symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, "ListAccountTrades")
	}

	execs := make([]*domain.Execution, 0, len(fills))
	for _, f := range fills {
		exec, err := c.mapFill(f)
		if err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}

	c.logger.Info(ctx, "Fetched account trade history", map[string]interface{}{
		"symbol": c.symbol,
		"count":  len(execs),
	})
	return execs, nil
}

func (c *Client) mapFill(f *futures.AccountTrade) (*domain.Execution, error) {
	record := fmt.Sprintf("binance trade id=%d %s %s %s@%s", f.ID, f.Symbol, f.Side, f.Quantity, f.Price)

	qty, err := decimal.NewFromString(f.Quantity)
	if err != nil || !qty.IsInteger() || qty.Sign() <= 0 {
		return nil, &ports.ValidationError{Field: "quantity", Record: record}
	}
	price, err := decimal.NewFromString(f.Price)
	if err != nil {
		return nil, &ports.ValidationError{Field: "price", Record: record}
	}
	commission := decimal.Zero
	if f.Commission != "" {
		if commission, err = decimal.NewFromString(f.Commission); err != nil {
			return nil, &ports.ValidationError{Field: "commission", Record: record}
		}
	}

	var side domain.OrderSide
	switch f.Side {
	case futures.SideTypeBuy:
		side = domain.Buy
	case futures.SideTypeSell:
		side = domain.Sell
	default:
		return nil, &ports.ValidationError{Field: "side", Record: record}
	}

	return &domain.Execution{
		Instrument:   f.Symbol,
		Account:      c.account,
		Side:         side,
		Quantity:     qty.IntPart(),
		Price:        price,
		Time:         time.UnixMilli(f.Time).UTC().Truncate(time.Second),
		BrokerExecID: fmt.Sprintf("%s-%d", f.Symbol, f.ID),
		Commission:   commission,
		SourceFile:   sourceName,
	}, nil
}

// handleError translates common Binance API errors, keeping the code and
// message visible in logs before wrapping.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message
		c.logger.Error(ctx, err, "Binance API error", fields)

		switch apiErr.Code {
		case -2014, -2015, -1022: // bad keys, permissions, signature
			return &ports.ConfigurationError{Instrument: c.symbol, Reason: fmt.Sprintf("binance authentication failed: %s", apiErr.Message)}
		}
		return fmt.Errorf("binance %s failed (code %d): %w", operation, apiErr.Code, err)
	}

	c.logger.Error(ctx, err, "Binance request error", fields)
	return fmt.Errorf("binance %s failed: %w", operation, err)
}
