package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	ouroborosidata "github.com/i5heu/ouroboros-idata"
	"github.com/i5heu/ouroboros-idata/pkg/address"
	"github.com/i5heu/ouroboros-idata/pkg/secretbox"
)

const usage = `Usage:
  %[1]s [global flags] put [--restricted] [--secret FILE] <file>   Store file and print its address
  %[1]s [global flags] get [--secret FILE] <address>               Write the value to stdout
  %[1]s [global flags] rm <address>                                Delete a restricted value
  %[1]s [global flags] ls [--restricted]                           List stored chunk addresses
  %[1]s [global flags] info [--secret FILE] <address>              Describe a stored value
  %[1]s [global flags] verify                                      Check every stored chunk
  %[1]s keygen <file>                                              Write a new secret key

Global flags:
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	progName := filepath.Base(os.Args[0])

	global := pflag.NewFlagSet(progName, pflag.ContinueOnError)
	global.SetInterspersed(false)
	dataDir := global.String("data", "ouroboros-idata-data", "directory holding the store")
	keyFile := global.String("owner-key", "ouroboros-idata.key", "owner key file, created on first use")
	configFile := global.String("config", "", "optional YAML config file")
	verbose := global.BoolP("verbose", "v", false, "log at debug level")
	global.Usage = func() {
		fmt.Fprintf(os.Stderr, usage, progName)
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errors.New("missing command")
	}
	cmd, cmdArgs := rest[0], rest[1:]

	if cmd == "keygen" {
		if len(cmdArgs) != 1 {
			return errors.New("keygen requires a file argument")
		}
		key, err := secretbox.GenerateKey()
		if err != nil {
			return err
		}
		return secretbox.SaveKey(cmdArgs[0], key)
	}

	store, err := openStore(*dataDir, *keyFile, *configFile, *verbose)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	switch cmd {
	case "put":
		return putCmd(ctx, store, cmdArgs)
	case "get":
		return getCmd(ctx, store, cmdArgs)
	case "rm":
		return rmCmd(ctx, store, cmdArgs)
	case "ls":
		return lsCmd(ctx, store, cmdArgs)
	case "info":
		return infoCmd(ctx, store, cmdArgs)
	case "verify":
		return verifyCmd(ctx, store)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openStore(dataDir, keyFile, configFile string, verbose bool) (*ouroborosidata.Store, error) {
	owner, err := loadOwnerKey(keyFile)
	if err != nil {
		return nil, err
	}

	cfg := &ouroborosidata.Config{}
	if configFile != "" {
		if cfg, err = ouroborosidata.LoadConfig(configFile); err != nil {
			return nil, err
		}
	}
	if len(cfg.Paths) == 0 {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
		cfg.Paths = []string{abs}
	}

	cfg.Logger = logrus.New()
	cfg.Logger.SetLevel(logrus.ErrorLevel)
	if verbose {
		cfg.Logger.SetLevel(logrus.DebugLevel)
	}

	return ouroborosidata.Init(owner, cfg)
}

// loadOwnerKey reads the ed25519 seed in path, creating it when missing.
func loadOwnerKey(path string) (ed25519.PrivateKey, error) {
	seed, err := os.ReadFile(path)
	if err == nil {
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("owner key %s must hold a %d byte seed", path, ed25519.SeedSize)
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read owner key %s: %w", path, err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, priv.Seed(), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save owner key to %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "Created new owner key and saved to %s\n", path)
	return priv, nil
}

func secretFlag(fs *pflag.FlagSet) *string {
	return fs.String("secret", "", "secret key file created by keygen")
}

func loadSecret(path string) (*secretbox.Key, error) {
	if path == "" {
		return nil, nil
	}
	return secretbox.LoadKey(path)
}

// parseAddress accepts both the textual and the base64 address forms.
func parseAddress(s string) (address.Address, error) {
	if addr, err := address.Parse(s); err == nil {
		return addr, nil
	}
	return address.ParseBase64(s)
}

func putCmd(ctx context.Context, store *ouroborosidata.Store, args []string) error {
	fs := pflag.NewFlagSet("put", pflag.ContinueOnError)
	restricted := fs.Bool("restricted", false, "store under the owner key so the value can be deleted")
	secret := secretFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("put requires exactly one file")
	}

	key, err := loadSecret(*secret)
	if err != nil {
		return err
	}
	value, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	vis := address.Published
	if *restricted {
		vis = address.Restricted
	}
	addr, err := store.Store(ctx, value, vis, key)
	if err != nil {
		return err
	}
	fmt.Println(addr)
	return nil
}

func getCmd(ctx context.Context, store *ouroborosidata.Store, args []string) error {
	fs := pflag.NewFlagSet("get", pflag.ContinueOnError)
	secret := secretFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("get requires exactly one address")
	}

	key, err := loadSecret(*secret)
	if err != nil {
		return err
	}
	addr, err := parseAddress(fs.Arg(0))
	if err != nil {
		return err
	}
	value, err := store.GetValue(ctx, addr, key)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(value)
	return err
}

func rmCmd(ctx context.Context, store *ouroborosidata.Store, args []string) error {
	if len(args) != 1 {
		return errors.New("rm requires exactly one address")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, addr); err != nil {
		return err
	}
	fmt.Println("Value deleted successfully")
	return nil
}

func lsCmd(ctx context.Context, store *ouroborosidata.Store, args []string) error {
	fs := pflag.NewFlagSet("ls", pflag.ContinueOnError)
	restricted := fs.Bool("restricted", false, "list the restricted namespace")
	if err := fs.Parse(args); err != nil {
		return err
	}
	vis := address.Published
	if *restricted {
		vis = address.Restricted
	}
	addrs, err := store.ListAddresses(ctx, vis)
	if err != nil {
		return err
	}
	for _, a := range addrs {
		fmt.Println(a)
	}
	return nil
}

func infoCmd(ctx context.Context, store *ouroborosidata.Store, args []string) error {
	fs := pflag.NewFlagSet("info", pflag.ContinueOnError)
	secret := secretFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("info requires exactly one address")
	}
	key, err := loadSecret(*secret)
	if err != nil {
		return err
	}
	addr, err := parseAddress(fs.Arg(0))
	if err != nil {
		return err
	}
	info, err := store.GetValueInfo(ctx, addr, key)
	if err != nil {
		return err
	}

	fmt.Printf("Address:      %s\n", info.Address)
	fmt.Printf("Base64:       %s\n", info.Address.Base64())
	fmt.Printf("Size:         %d bytes\n", info.ClearTextSize)
	fmt.Printf("Record size:  %d bytes\n", info.RecordSize)
	fmt.Printf("Inline:       %t\n", info.Inline)
	fmt.Printf("Chunks:       %d\n", info.NumChunks)
	fmt.Printf("Compression:  %s\n", info.Compression)
	fmt.Printf("Slices:       %d (%d damaged)\n", info.Slices, info.DamagedSlices)
	return nil
}

func verifyCmd(ctx context.Context, store *ouroborosidata.Store) error {
	results, err := store.ValidateAll(ctx)
	damaged := 0
	for _, r := range results {
		if r.Passed() && r.DamagedSlices > 0 {
			damaged++
			fmt.Printf("REPAIRABLE %s (%d damaged slices)\n", r.Address, r.DamagedSlices)
		}
		if !r.Passed() {
			fmt.Printf("FAILED     %s: %v\n", r.Address, r.Err)
		}
	}
	fmt.Printf("Checked %d chunks, %d with damaged slices\n", len(results), damaged)
	return err
}
