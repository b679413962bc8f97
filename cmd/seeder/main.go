// Command seeder credits payment tokens to wallets in a postgres-backed
// ledger, so dev and staging investors can subscribe.
package main

import (
	"context"
	"flag"
	"math/big"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gagliardetto/solana-go"

	"navfund/internal/adapters/config"
	pgclient "navfund/internal/adapters/postgres"
	pgrepo "navfund/internal/repository/postgres"
	"navfund/pkg/logger"
)

func main() {
	owners := flag.String("owners", "", "Comma-separated base58 wallets to credit")
	asset := flag.String("asset", "", "Mint to credit (default: FUND_PAYMENT_MINT)")
	amount := flag.Uint64("amount", 1_000_000_000, "Base units per wallet")
	dryRun := flag.Bool("dry-run", false, "Validate arguments without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	mint := cfg.Fund.PaymentMint
	if *asset != "" {
		mint, err = solana.PublicKeyFromBase58(*asset)
		if err != nil {
			log.Fatalf("invalid -asset: %v", err)
		}
	}
	if mint.IsZero() {
		log.Fatal("no asset: pass -asset or set FUND_PAYMENT_MINT")
	}

	wallets, err := parseWallets(*owners)
	if err != nil {
		log.Fatalf("invalid -owners: %v", err)
	}
	if len(wallets) == 0 {
		log.Warn("No wallets to credit")
		return
	}

	log.Infow("Starting seeder",
		"asset", mint,
		"wallets", len(wallets),
		"amount", formatAmount(*amount),
		"dry_run", *dryRun,
	)
	if *dryRun {
		log.Info("Dry-run mode: arguments validated")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := pgclient.NewClient(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer client.Close()

	if err := pgclient.Migrate(client.DB(), log); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	store := pgrepo.NewStore(client.DB(), log)
	for i, wallet := range wallets {
		if err := store.Credit(ctx, mint, wallet, *amount); err != nil {
			log.Errorw("Failed to credit wallet", "step", i+1, "wallet", wallet, "error", err)
			return
		}
		balance, err := store.BalanceOf(ctx, mint, wallet)
		if err != nil {
			log.Errorw("Failed to read balance", "wallet", wallet, "error", err)
			return
		}
		log.Infow("Wallet credited", "step", i+1, "wallet", wallet, "balance", formatAmount(balance))
	}

	log.Info("All wallets credited")
}

func parseWallets(raw string) ([]solana.PublicKey, error) {
	var out []solana.PublicKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, err := solana.PublicKeyFromBase58(part)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, nil
}

func formatAmount(v uint64) string {
	return humanize.BigComma(new(big.Int).SetUint64(v))
}
