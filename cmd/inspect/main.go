package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	ouroborosidata "github.com/i5heu/ouroboros-idata"
	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/spaceInformations"
)

func main() {
	path := pflag.String("path", "", "path to the Ouroboros IData directory")
	showKeys := pflag.Bool("show-keys", false, "print chunk addresses for manual inspection")
	namespace := pflag.String("namespace", "published", "namespace to list with --show-keys (published or restricted)")
	limit := pflag.Int("limit", 20, "max number of addresses to print when show-keys is enabled (0 = unlimited)")
	pflag.Parse()

	if *path == "" {
		logrus.Fatal("--path is required")
	}

	// Inspection never writes, so any owner key will do.
	_, owner, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		logrus.Fatalf("failed to generate key: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &ouroborosidata.Config{
		Paths:            []string{*path},
		MinimumFreeSpace: 0,
		Logger:           logger,
	}

	store, err := ouroborosidata.Init(owner, cfg)
	if err != nil {
		logrus.Fatalf("failed to open store at %s: %v", *path, err)
	}
	defer store.Close()

	ctx := context.Background()
	counts := map[address.Visibility][]address.Address{}
	for _, vis := range []address.Visibility{address.Published, address.Restricted} {
		addrs, err := store.ListAddresses(ctx, vis)
		if err != nil {
			logrus.Fatalf("failed to list %s chunks: %v", vis, err)
		}
		counts[vis] = addrs
	}

	fmt.Printf("Store path: %s\n", *path)
	fmt.Printf("Published chunks: %d\n", len(counts[address.Published]))
	fmt.Printf("Restricted chunks: %d\n", len(counts[address.Restricted]))

	if usage, err := spaceInformations.GetUsage(*path); err == nil {
		fmt.Printf("Store size: %d bytes on %s (%s)\n", usage.Store, usage.Device, usage.MountPoint)
		fmt.Printf("Disk free: %d of %d bytes\n", usage.Free, usage.Total)
	}

	if *showKeys {
		vis, err := address.ParseVisibility(*namespace)
		if err != nil {
			logrus.Fatalf("invalid namespace: %v", err)
		}
		addrs := counts[vis]
		if *limit > 0 && len(addrs) > *limit {
			addrs = addrs[:*limit]
			fmt.Printf("Listing first %d %s addresses:\n", *limit, vis)
		} else {
			fmt.Printf("Listing %d %s addresses:\n", len(addrs), vis)
		}

		if len(addrs) == 0 {
			fmt.Println("  (no entries)")
		}
		for _, a := range addrs {
			fmt.Printf("  %s\n", a)
		}
	}
}
