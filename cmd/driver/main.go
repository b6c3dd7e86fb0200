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
		profilePath = flag.String("profile", profile.DefaultPath("lehgo-driver"), "path to the local profile file")
	)
	flag.Parse()

	cfg, err := config.LoadClientConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	log := logging.NewTextLogger(cfg.LogLevel)

	gw := gateway.New(cfg.GatewayURL, 5*time.Second)
	prof, err := ensureProfile(*profilePath, *phone, *name, models.RoleDriver, gw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("driving as %s (%s)\n", prof.Name, prof.UserID)

	tr, err := buildTransport(cfg, "lehgo-driver-"+prof.UserID)
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

	sess := session.NewDriverSession(mgr, gw, prof.UserID, prof.Name, log)
	defer sess.Close()
	sess.OnRequest = func(r models.RideRequest) {
		ac := ""
		if r.Options.AirConditioning {
			ac = " (AC)"
		}
		fmt.Printf("new request: %s -> %s, %s%s, asking %d LRD\n", r.Pickup, r.Destination, r.Vehicle, ac, r.Price)
	}

	ctx := context.Background()
	if err := mgr.Connect(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "connect failed:", err)
		os.Exit(1)
	}

	fmt.Println("commands: requests | bid <n> [amount] | counter <n> <amount> [ac] | quit")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "requests":
			for i, r := range sess.Requests() {
				fmt.Printf("%d: %s -> %s, %s, asking %d LRD\n", i, r.Pickup, r.Destination, r.Vehicle, r.Price)
			}
		case "bid":
			if len(fields) < 2 {
				fmt.Println("usage: bid <n> [amount]")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			reqs := sess.Requests()
			if err != nil || n < 0 || n >= len(reqs) {
				fmt.Println("no such request")
				continue
			}
			amount := reqs[n].Price
			if len(fields) > 2 {
				if amount, err = strconv.ParseInt(fields[2], 10, 64); err != nil {
					fmt.Println("bad amount:", fields[2])
					continue
				}
			}
			bid, err := sess.SubmitBid(ctx, reqs[n], amount)
			if err != nil {
				fmt.Println("bid failed:", err)
				continue
			}
			fmt.Printf("bid sent: %d LRD on %s\n", bid.Amount, bid.RequestID)
		case "counter":
			if len(fields) < 3 {
				fmt.Println("usage: counter <n> <amount> [ac]")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			reqs := sess.Requests()
			if err != nil || n < 0 || n >= len(reqs) {
				fmt.Println("no such request")
				continue
			}
			amount, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				fmt.Println("bad amount:", fields[2])
				continue
			}
			opts := models.RequestOptions{AirConditioning: len(fields) > 3 && fields[3] == "ac"}
			bid, err := sess.SubmitCounter(ctx, reqs[n], amount, opts)
			if err != nil {
				fmt.Println("counter failed:", err)
				continue
			}
			fmt.Printf("counter sent: %d LRD on %s\n", bid.Amount, bid.RequestID)
		case "quit":
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}
