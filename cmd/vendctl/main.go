package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/ptfpinho23/HeadlessVendingMachine/pkg/api/client"
	"github.com/ptfpinho23/HeadlessVendingMachine/pkg/jwt"
)

const defaultAPIBase = "http://localhost:8080"

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
}

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "signup":
		err = commandSignup(args)
	case "login":
		err = commandLogin(args)
	case "logout":
		err = commandLogout(args)
	case "whoami":
		err = commandWhoami(args)
	case "deposit":
		err = commandDeposit(args)
	case "reset":
		err = commandReset(args)
	case "products":
		err = commandProducts(args)
	case "buy":
		err = commandBuy(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandSignup(args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	username := fs.String("username", "", "Account username")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	role := fs.String("role", "buyer", "Account role (buyer|seller)")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	fs.Parse(args)

	if strings.TrimSpace(*username) == "" {
		return errors.New("--username is required")
	}
	secret, err := passwordOrPrompt(*password)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := apiclient.New(pickBase(*apiBase, cfg))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	user, err := client.Signup(ctx, *username, secret, *role)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s account %s (%s)\n", user.Role, user.Username, user.ID)
	return nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "Account username")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	fs.Parse(args)

	if strings.TrimSpace(*username) == "" {
		return errors.New("--username is required")
	}
	secret, err := passwordOrPrompt(*password)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	base := pickBase(*apiBase, cfg)
	client, err := apiclient.New(base)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	token, err := client.Login(ctx, *username, secret)
	if err != nil {
		return err
	}
	cfg.APIBaseURL = base
	cfg.AccessToken = token
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("Logged in as %s\n", *username)
	return nil
}

func commandLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.Parse(args)

	cfg, client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := client.Logout(ctx, token); err != nil {
		return err
	}
	cfg.AccessToken = ""
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Println("Session terminated")
	return nil
}

func commandWhoami(args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	fs.Parse(args)

	_, client, token, err := authedClient()
	if err != nil {
		return err
	}
	claims, err := jwt.Inspect(token)
	if err != nil {
		return fmt.Errorf("stored token is unreadable, login again: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	user, err := client.Me(ctx, token, claims.UserID)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\tdeposit=%d\n", user.ID, user.Username, user.Role, user.Deposit)
	return nil
}

func commandDeposit(args []string) error {
	fs := flag.NewFlagSet("deposit", flag.ExitOnError)
	fs.Parse(args)

	coins, err := parseCoins(fs.Args())
	if err != nil {
		return err
	}
	_, client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	balance := 0
	for _, coin := range coins {
		balance, err = client.Deposit(ctx, token, coin)
		if err != nil {
			return fmt.Errorf("deposit %d: %w", coin, err)
		}
	}
	fmt.Printf("Balance: %d\n", balance)
	return nil
}

func commandReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	fs.Parse(args)

	_, client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := client.Reset(ctx, token); err != nil {
		return err
	}
	fmt.Println("Balance: 0")
	return nil
}

func commandProducts(args []string) error {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := apiclient.New(pickBase(*apiBase, cfg))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	products, err := client.ListProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		fmt.Printf("%s\t%s\tcost=%d\tavailable=%d\n", p.ID, p.Name, p.Cost, p.AmountAvailable)
	}
	return nil
}

func commandBuy(args []string) error {
	fs := flag.NewFlagSet("buy", flag.ExitOnError)
	productID := fs.String("product", "", "Product identifier")
	quantity := fs.Int("quantity", 1, "Units to buy")
	fs.Parse(args)

	if strings.TrimSpace(*productID) == "" {
		return errors.New("--product is required")
	}
	_, client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	receipt, err := client.Buy(ctx, token, *productID, *quantity)
	if err != nil {
		return err
	}
	fmt.Printf("Bought %d x %s for %d\n", *quantity, receipt.Product, receipt.SubTotal)
	fmt.Printf("Change: %d %v\n", receipt.TotalChange, receipt.Change)
	return nil
}

func authedClient() (cliConfig, *apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return cliConfig{}, nil, "", errors.New("please login first using 'vendctl login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return cliConfig{}, nil, "", err
	}
	return cfg, client, token, nil
}

func passwordOrPrompt(flagValue string) (string, error) {
	if secret := strings.TrimSpace(flagValue); secret != "" {
		return secret, nil
	}
	fmt.Print("Password: ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func pickBase(flagValue string, cfg cliConfig) string {
	if strings.TrimSpace(flagValue) != "" {
		return strings.TrimSpace(flagValue)
	}
	return cfg.APIBaseURL
}

// parseCoins accepts coin values as separate arguments or comma separated.
func parseCoins(args []string) ([]int, error) {
	var coins []int
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			value, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid coin %q", part)
			}
			coins = append(coins, value)
		}
	}
	if len(coins) == 0 {
		return nil, errors.New("at least one coin is required")
	}
	return coins, nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "vendctl", "config.json"), nil
}

func printUsage() {
	fmt.Printf("vendctl %s\n\n", buildVersion)
	fmt.Print(`Usage:
	vendctl signup --username alice [--password secret] [--role buyer|seller]
	vendctl login --username alice [--password secret] [--api http://localhost:8080]
	vendctl logout
	vendctl whoami
	vendctl deposit 100 50 20
	vendctl reset
	vendctl products
	vendctl buy --product <product-id> [--quantity N]
	vendctl version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
