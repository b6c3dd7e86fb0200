// Package gateway is the client for the backend API: the source of truth
// for users, rides and bids that the live negotiation reconciles against.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/henriqu3-99/Lehgo/internal/models"
)

// Error wraps any gateway call failure, network or HTTP. Unlike transport
// and parse errors it always propagates to whoever initiated the call, so
// the UI can inform the user and offer a retry.
type Error struct {
	Op     string
	Status int // 0 on network failure
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client talks to the backend over HTTP. Every call carries the caller's
// context plus a client-side timeout: the wire protocol itself has none.
type Client struct {
	base string
	http *http.Client
}

func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{base: base, http: &http.Client{Timeout: timeout}}
}

// UserParams for CreateUser.
type UserParams struct {
	Phone string  `json:"phone"`
	Name  string  `json:"name"`
	Role  string  `json:"role"`
	Lat   float64 `json:"last_lat"`
	Long  float64 `json:"last_long"`
}

// RideParams for CreateRide. RequestID carries the client-generated
// negotiation id; the backend adopts it as the ride id.
type RideParams struct {
	RequestID      string              `json:"request_id,omitempty"`
	RiderID        string              `json:"rider_id"`
	PickupAddress  string              `json:"pickup_address"`
	DropoffAddress string              `json:"dropoff_address"`
	PickupLat      float64             `json:"pickup_lat"`
	PickupLong     float64             `json:"pickup_long"`
	DropoffLat     float64             `json:"dropoff_lat"`
	DropoffLong    float64             `json:"dropoff_long"`
	VehicleType    models.VehicleClass `json:"vehicle_type"`
	Price          int64               `json:"price"`
}

// OTPResult is the send-otp response; DevCode is populated in dev mode.
type OTPResult struct {
	Status  string `json:"status"`
	DevCode string `json:"dev_code,omitempty"`
}

func (c *Client) CreateUser(ctx context.Context, p UserParams) (models.User, error) {
	var u models.User
	if err := c.post(ctx, "create user", "/users", p, &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (c *Client) CreateRide(ctx context.Context, p RideParams) (models.Ride, error) {
	var r models.Ride
	if err := c.post(ctx, "create ride", "/rides", p, &r); err != nil {
		return models.Ride{}, err
	}
	return r, nil
}

func (c *Client) CreateBid(ctx context.Context, rideID, driverID string, amount int64) (models.BidRecord, error) {
	body := map[string]any{"ride_id": rideID, "driver_id": driverID, "amount": amount}
	var b models.BidRecord
	if err := c.post(ctx, "create bid", "/bids", body, &b); err != nil {
		return models.BidRecord{}, err
	}
	return b, nil
}

// AcceptBid records the rider's choice; the backend marks the ride accepted
// and the winning bid accepted. No pub/sub message announces this.
func (c *Client) AcceptBid(ctx context.Context, rideID, driverID string, amount int64) error {
	body := map[string]any{"driver_id": driverID, "amount": amount}
	return c.post(ctx, "accept bid", "/rides/"+url.PathEscape(rideID)+"/accept", body, nil)
}

func (c *Client) SendOTP(ctx context.Context, phone string) (OTPResult, error) {
	var res OTPResult
	if err := c.post(ctx, "send otp", "/auth/send-otp", map[string]string{"phone": phone}, &res); err != nil {
		return OTPResult{}, err
	}
	return res, nil
}

// VerifyOTP returns an explicit false for a rejected code. A false with a
// non-nil error means the operation did not complete, not that the code was
// wrong.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (bool, error) {
	body := map[string]string{"phone": phone, "code": code}
	resp, err := c.do(ctx, "verify otp", http.MethodPost, "/auth/verify-otp", body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusUnauthorized:
		return false, nil
	default:
		return false, &Error{Op: "verify otp", Status: resp.StatusCode}
	}
}

func (c *Client) NearbyDrivers(ctx context.Context, lat, long float64) ([]models.DriverLocation, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("long", strconv.FormatFloat(long, 'f', -1, 64))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/drivers/nearby?"+q.Encode(), nil)
	if err != nil {
		return nil, &Error{Op: "nearby drivers", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: "nearby drivers", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "nearby drivers", Status: resp.StatusCode}
	}
	var out []models.DriverLocation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Op: "nearby drivers", Err: err}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	resp, err := c.do(ctx, op, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: op, Status: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(b))
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	return resp, nil
}
