package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/henriqu3-99/Lehgo/internal/config"
	"github.com/henriqu3-99/Lehgo/internal/gateway"
	"github.com/henriqu3-99/Lehgo/internal/logging"
	"github.com/henriqu3-99/Lehgo/internal/models"
	"github.com/henriqu3-99/Lehgo/internal/profile"
	"github.com/henriqu3-99/Lehgo/internal/session"
	"github.com/henriqu3-99/Lehgo/internal/transport"
)

func main() {
	var (
		phone       = flag.String("phone", "", "phone number for first-run registration")
		name        = flag.String("name", "", "display name for first-run registration")
		profilePath = flag.String("profile", profile.DefaultPath("lehgo-rider"), "path to the local profile file")
	)
	flag.Parse()

	cfg, err := config.LoadClientConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	log := logging.NewTextLogger(cfg.LogLevel)

	gw := gateway.New(cfg.GatewayURL, 5*time.Second)
	prof, err := ensureProfile(*profilePath, *phone, *name, models.RoleRider, gw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("signed in as %s (%s)\n", prof.Name, prof.UserID)

	tr, err := buildTransport(cfg, "lehgo-rider-"+prof.UserID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	mgr := transport.NewManager(tr, log)
	defer mgr.Close()

	removeListener := mgr.AddStatusListener(func(st transport.Status) {
		fmt.Println("connection:", st)
	})
	defer removeListener()

	sess := session.NewRiderSession(mgr, gw, log)
	defer sess.Close()
	sess.OnBid = func(b models.Bid) {
		fmt.Printf("new bid: %s offers %d LRD\n", b.DriverName, b.Amount)
	}

	ctx := context.Background()
	if err := mgr.Connect(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "connect failed:", err)
		os.Exit(1)
	}

	fmt.Println("commands: request <pickup> <dest> <Bike|Keke|Taxi> <price> | bids | accept <n> | cancel | quit")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "request":
			if len(fields) < 5 {
				fmt.Println("usage: request <pickup> <dest> <vehicle> <price> [ac]")
				continue
			}
			price, err := strconv.ParseInt(fields[4], 10, 64)
			if err != nil {
				fmt.Println("bad price:", fields[4])
				continue
			}
			opts := models.RequestOptions{AirConditioning: len(fields) > 5 && fields[5] == "ac"}
			req, err := sess.SubmitRequest(fields[1], fields[2], models.VehicleClass(fields[3]), price, opts)
			if err != nil {
				fmt.Println("request failed:", err)
				continue
			}
			// record the ride so drivers bidding over HTTP see it too
			if _, err := gw.CreateRide(ctx, gateway.RideParams{
				RequestID:      req.RequestID,
				RiderID:        prof.UserID,
				PickupAddress:  req.Pickup,
				DropoffAddress: req.Destination,
				VehicleType:    req.Vehicle,
				Price:          req.Price,
			}); err != nil {
				fmt.Println("warning: ride not recorded:", err)
			}
			fmt.Println("searching, request", req.RequestID)
		case "bids":
			for i, b := range sess.Bids() {
				fmt.Printf("%d: %s offers %d LRD\n", i, b.DriverName, b.Amount)
			}
		case "accept":
			if len(fields) < 2 {
				fmt.Println("usage: accept <n>")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			bids := sess.Bids()
			if err != nil || n < 0 || n >= len(bids) {
				fmt.Println("no such bid")
				continue
			}
			if err := sess.AcceptBid(ctx, bids[n]); err != nil {
				fmt.Println("accept failed:", err)
				continue
			}
			fmt.Printf("confirmed with %s at %d LRD\n", bids[n].DriverName, bids[n].Amount)
		case "cancel":
			if err := sess.Cancel(); err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Println("search cancelled")
		case "status":
			fmt.Println("state:", sess.State(), "connection:", sess.ConnectionStatus())
		case "quit":
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}
