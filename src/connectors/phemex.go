// REST client for Phemex USDT-M futures, used as the live execution venue.
package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"autotrader/src/model"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

type APIResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Client signs and sends Phemex REST requests.
type Client struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *resty.Client
	limiter   *rate.Limiter
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return (code >= 500 && code <= 599) || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func NewClient(apiKey, apiSecret, baseURL string, timeout time.Duration, limiter *rate.Limiter) *Client {
	if baseURL == "" {
		baseURL = "https://testnet-api.phemex.com"
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &Client{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		http:      httpClient,
		limiter:   limiter,
	}
}

func signRequest(path, query, body string, expiry int64, secret string) string {
	base := path + query + strconv.FormatInt(expiry, 10) + body
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) doRequest(ctx context.Context, method, path, query string, body []byte) (*APIResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	expiry := time.Now().Add(time.Minute).Unix()
	sig := signRequest(path, query, string(body), expiry, c.apiSecret)

	req := c.http.R().
		SetContext(ctx).
		SetHeader("x-phemex-access-token", c.apiKey).
		SetHeader("x-phemex-request-expiry", strconv.FormatInt(expiry, 10)).
		SetHeader("x-phemex-request-signature", sig)
	if query != "" {
		req = req.SetQueryString(query)
	}
	if body != nil {
		req = req.SetBody(body).SetHeader("Content-Type", "application/json")
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	raw := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(raw))
	}

	var apiResp APIResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, err
	}
	return &apiResp, nil
}

// phemexOrder is the subset of the order payload the venue reads.
type phemexOrder struct {
	OrderID    string `json:"orderID"`
	ClOrdID    string `json:"clOrdID"`
	Symbol     string `json:"symbol"`
	OrdStatus  string `json:"ordStatus"`
	CumQtyRq   string `json:"cumQtyRq"`
	CumValueRv string `json:"cumValueRv"`
	PriceRp    string `json:"priceRp"`
}

func (o phemexOrder) result() model.OrderResult {
	res := model.OrderResult{VenueOrderID: o.OrderID, Status: mapOrdStatus(o.OrdStatus)}
	qty, _ := strconv.ParseFloat(o.CumQtyRq, 64)
	value, _ := strconv.ParseFloat(o.CumValueRv, 64)
	res.FilledQuantity = qty
	if qty > 0 {
		res.AvgFillPrice = value / qty
	}
	if res.Status == model.OrderStatusRejected {
		res.Reason = "rejected by venue"
	}
	return res
}

func mapOrdStatus(s string) model.OrderStatus {
	switch s {
	case "Filled":
		return model.OrderStatusFilled
	case "Canceled", "Deactivated":
		return model.OrderStatusCancelled
	case "Rejected":
		return model.OrderStatusRejected
	default:
		// Created, Init, New, PartiallyFilled, Untriggered, Triggered
		return model.OrderStatusSubmitted
	}
}

// PlaceOrder submits a futures order. Closing orders set reduceOnly so a
// fill can never open the opposite position.
func (c *Client) PlaceOrder(ctx context.Context, symbol, side, posSide, qty, ordType, price, clOrdID string, reduceOnly bool) (*APIResponse, error) {
	if clOrdID == "" {
		clOrdID = "at-" + uuid.NewString()
	}
	body := map[string]interface{}{
		"symbol":     symbol,
		"side":       side,
		"posSide":    posSide,
		"ordType":    ordType,
		"orderQtyRq": qty,
		"reduceOnly": reduceOnly,
		"clOrdID":    clOrdID,
	}
	if ordType == "Limit" {
		body["priceRp"] = price
		body["timeInForce"] = "GoodTillCancel"
	} else {
		body["timeInForce"] = "ImmediateOrCancel"
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.doRequest(ctx, http.MethodPost, "/g-orders", "", b)
}

func (c *Client) CancelOrder(ctx context.Context, symbol, posSide, orderID string) (*APIResponse, error) {
	return c.doRequest(ctx, http.MethodDelete, "/g-orders/cancel",
		fmt.Sprintf("orderID=%s&posSide=%s&symbol=%s", orderID, posSide, symbol), nil)
}

func (c *Client) GetOrder(ctx context.Context, symbol, orderID string) (*APIResponse, error) {
	return c.doRequest(ctx, http.MethodGet, "/api-data/g-futures/orders/by-order-id",
		fmt.Sprintf("orderID=%s&symbol=%s", orderID, symbol), nil)
}

func (c *Client) GetOrderByClientID(ctx context.Context, symbol, clOrdID string) (*APIResponse, error) {
	return c.doRequest(ctx, http.MethodGet, "/api-data/g-futures/orders/by-order-id",
		fmt.Sprintf("clOrdID=%s&symbol=%s", clOrdID, symbol), nil)
}

// PhemexVenue adapts Client to ExecutionPort. Order ids and client order
// ids are remembered with their symbol because every Phemex order query
// needs both.
type PhemexVenue struct {
	client  *Client
	posSide string

	mu      sync.Mutex
	symbols map[string]string
	clients map[string]string
	log     *logger.Entry
}

func NewPhemexVenue(client *Client, posSide string) *PhemexVenue {
	if posSide == "" {
		posSide = "Merged"
	}
	return &PhemexVenue{
		client:  client,
		posSide: posSide,
		symbols: make(map[string]string),
		clients: make(map[string]string),
		log:     logger.WithField("venue", "phemex"),
	}
}

// venueSymbol turns "BTC_USDT" into "BTCUSDT".
func venueSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "_", ""))
}

func (v *PhemexVenue) PlaceOrder(ctx context.Context, intent model.OrderIntent) (model.OrderResult, error) {
	if err := validateIntent(intent); err != nil {
		return model.OrderResult{Status: model.OrderStatusRejected, Reason: err.Error()}, nil
	}
	symbol := venueSymbol(intent.Symbol)
	side := "Buy"
	if intent.Side == model.OrderSideSell {
		side = "Sell"
	}
	ordType, price := "Market", ""
	if intent.Type == model.OrderTypeLimit {
		ordType = "Limit"
		price = strconv.FormatFloat(*intent.LimitPrice, 'f', -1, 64)
	}
	qty := strconv.FormatFloat(intent.Quantity, 'f', -1, 64)
	if intent.ClientOrderID != "" {
		v.mu.Lock()
		v.clients[intent.ClientOrderID] = symbol
		v.mu.Unlock()
	}

	resp, err := v.client.PlaceOrder(ctx, symbol, side, v.posSide, qty, ordType, price, intent.ClientOrderID, intent.ReduceOnly)
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("phemex place order: %w", err)
	}
	entry := v.log.WithFields(logger.Fields{"symbol": symbol, "side": side, "qty": qty, "type": ordType})
	if resp.Code != 0 {
		reason := fmt.Sprintf("%s: %s", GetErrorMsg(resp.Code), resp.Msg)
		entry.WithField("code", resp.Code).Warn("order rejected")
		return model.OrderResult{Status: model.OrderStatusRejected, Reason: reason}, nil
	}

	var order phemexOrder
	if err := json.Unmarshal(resp.Data, &order); err != nil {
		return model.OrderResult{}, fmt.Errorf("decode phemex order: %w", err)
	}
	v.mu.Lock()
	v.symbols[order.OrderID] = symbol
	v.mu.Unlock()

	res := order.result()
	entry.WithFields(logger.Fields{"order_id": order.OrderID, "status": res.Status}).Info("order placed")
	return res, nil
}

func (v *PhemexVenue) symbolFor(orderID string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	symbol, ok := v.symbols[orderID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return symbol, nil
}

func (v *PhemexVenue) GetOrderStatus(ctx context.Context, venueOrderID string) (model.OrderResult, error) {
	symbol, err := v.symbolFor(venueOrderID)
	if err != nil {
		return model.OrderResult{}, err
	}
	resp, err := v.client.GetOrder(ctx, symbol, venueOrderID)
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("phemex order status: %w", err)
	}
	if resp.Code != 0 {
		return model.OrderResult{}, fmt.Errorf("phemex order status: %s", GetErrorMsg(resp.Code))
	}
	orders, err := decodeOrders(resp.Data)
	if err != nil {
		return model.OrderResult{}, err
	}
	for _, o := range orders {
		if o.OrderID == venueOrderID {
			return o.result(), nil
		}
	}
	return model.OrderResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, venueOrderID)
}

// FindByClientOrderID queries an order placed with intent.ClientOrderID
// whose placement response never arrived.
func (v *PhemexVenue) FindByClientOrderID(ctx context.Context, clientOrderID string) (model.OrderResult, error) {
	v.mu.Lock()
	symbol, ok := v.clients[clientOrderID]
	v.mu.Unlock()
	if !ok {
		return model.OrderResult{}, fmt.Errorf("%w: client id %s", ErrOrderNotFound, clientOrderID)
	}
	resp, err := v.client.GetOrderByClientID(ctx, symbol, clientOrderID)
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("phemex order by client id: %w", err)
	}
	if resp.Code != 0 {
		return model.OrderResult{}, fmt.Errorf("phemex order by client id: %s", GetErrorMsg(resp.Code))
	}
	orders, err := decodeOrders(resp.Data)
	if err != nil {
		return model.OrderResult{}, err
	}
	for _, o := range orders {
		if o.ClOrdID == clientOrderID {
			v.mu.Lock()
			v.symbols[o.OrderID] = symbol
			v.mu.Unlock()
			return o.result(), nil
		}
	}
	return model.OrderResult{}, fmt.Errorf("%w: client id %s", ErrOrderNotFound, clientOrderID)
}

func (v *PhemexVenue) CancelOrder(ctx context.Context, venueOrderID string) (model.OrderStatus, error) {
	symbol, err := v.symbolFor(venueOrderID)
	if err != nil {
		return "", err
	}
	resp, err := v.client.CancelOrder(ctx, symbol, v.posSide, venueOrderID)
	if err != nil {
		return "", fmt.Errorf("phemex cancel: %w", err)
	}
	if resp.Code != 0 {
		// already final at the venue, report what it is now
		res, statusErr := v.GetOrderStatus(ctx, venueOrderID)
		if statusErr != nil {
			return "", fmt.Errorf("phemex cancel: %s: %w", GetErrorMsg(resp.Code), statusErr)
		}
		return res.Status, nil
	}
	var order phemexOrder
	if err := json.Unmarshal(resp.Data, &order); err != nil {
		return "", fmt.Errorf("decode phemex cancel: %w", err)
	}
	status := mapOrdStatus(order.OrdStatus)
	if status == model.OrderStatusSubmitted {
		status = model.OrderStatusCancelled
	}
	return status, nil
}

// decodeOrders accepts both a bare array and a {"rows": [...]} page.
func decodeOrders(data json.RawMessage) ([]phemexOrder, error) {
	var orders []phemexOrder
	if err := json.Unmarshal(data, &orders); err == nil {
		return orders, nil
	}
	var page struct {
		Rows []phemexOrder `json:"rows"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode phemex orders: %w", err)
	}
	return page.Rows, nil
}
