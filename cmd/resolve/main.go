// Command resolve prints a mint's hook registry and, given transfer
// parameters, the extra accounts a client must append to TransferChecked.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"solana-burn-hook/internal/config"
	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/hook"
	"solana-burn-hook/internal/logging"
	"solana-burn-hook/internal/observability"
	"solana-burn-hook/internal/resolver"
	"solana-burn-hook/internal/solana"
	"solana-burn-hook/internal/storage"
	"solana-burn-hook/internal/storage/migrations"
	pgstore "solana-burn-hook/internal/storage/postgres"
)

func main() {
	config.LoadEnvFile("")

	configPath := flag.String("config", os.Getenv("BURN_HOOK_CONFIG"), "YAML config file")
	mintFlag := flag.String("mint", "", "Mint address (required)")
	sourceFlag := flag.String("source", "", "Source token account")
	destinationFlag := flag.String("destination", "", "Destination token account")
	authorityFlag := flag.String("authority", "", "Transfer authority (source owner or delegate)")
	amount := flag.String("amount", "0", "Transfer amount in UI units, e.g. 12.5")
	useCatalog := flag.Bool("catalog", false, "Cache registries in PostgreSQL (storage.postgres_dsn)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[resolve] %v", err)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("[resolve] %v", err)
	}

	if err := run(context.Background(), cfg, params{
		mint:        *mintFlag,
		source:      *sourceFlag,
		destination: *destinationFlag,
		authority:   *authorityFlag,
		amount:      *amount,
		catalog:     *useCatalog,
	}); err != nil {
		log.Fatalf("[resolve] %v", err)
	}
}

type params struct {
	mint, source, destination, authority string
	amount                               string
	catalog                              bool
}

func run(ctx context.Context, cfg *config.Config, p params) error {
	programID, err := cfg.ProgramID()
	if err != nil {
		return err
	}
	if cfg.Solana.RPCEndpoint == "" {
		return fmt.Errorf("solana.rpc_endpoint (or %s) is required", config.EnvRPCEndpoint)
	}
	if p.mint == "" {
		return fmt.Errorf("-mint is required")
	}
	mint, err := solana.ParsePublicKey(p.mint)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}

	metrics := observability.NewMetrics(observability.DefaultNamespace)
	rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint,
		solana.WithTimeout(cfg.Solana.Timeout()),
		solana.WithMaxRetries(cfg.Solana.MaxRetries),
		solana.WithCommitment(cfg.Solana.Commitment),
		solana.WithLatencyObserver(metrics.RecordRPCLatency),
	)

	opts := []resolver.Option{resolver.WithLogger(log.WithField("component", "resolver"))}
	if p.catalog {
		if cfg.Storage.PostgresDSN == "" {
			return fmt.Errorf("-catalog needs storage.postgres_dsn (or %s)", config.EnvPostgresDSN)
		}
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN, pgstore.WithMaxConns(cfg.Storage.PostgresMaxConns))
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
		catalog := storage.InstrumentRegistries(pgstore.NewRegistryStore(pool), metrics, "postgres")
		opts = append(opts, resolver.WithCatalog(catalog))
	}
	r := resolver.New(programID, rpc, opts...)

	m, err := printMint(ctx, r, programID, mint)
	if err != nil {
		return err
	}

	reg, err := r.Resolve(ctx, mint)
	if err != nil {
		return err
	}
	source := "rpc"
	if reg.Cached {
		source = "catalog"
	}
	fmt.Printf("registry:        %s (bump %d, from %s)\n", reg.Address, reg.Bump, source)
	for i, m := range reg.Metas {
		fmt.Printf("  extra[%d]       %s\n", i, describeMeta(m))
	}

	if p.source == "" && p.destination == "" && p.authority == "" {
		return nil
	}
	keys := make([]solana.PublicKey, 3)
	for i, s := range []string{p.source, p.destination, p.authority} {
		if keys[i], err = solana.ParsePublicKey(s); err != nil {
			return fmt.Errorf("-source, -destination and -authority must all be set: %w", err)
		}
	}

	ui, err := decimal.NewFromString(p.amount)
	if err != nil || ui.IsNegative() {
		return fmt.Errorf("-amount %q is not a non-negative decimal", p.amount)
	}
	raw, err := domain.RawAmount(ui, m.Decimals)
	if err != nil {
		return fmt.Errorf("-amount: %w", err)
	}

	src, err := r.TokenAccount(ctx, keys[0])
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if src.Mint != m.Address {
		return fmt.Errorf("source %s holds mint %s", src.Address, src.Mint)
	}
	fmt.Printf("source balance:  %s\n", domain.FormatUIAmount(src.Amount, m.Decimals))
	if src.Amount < raw {
		log.Warnf("source holds %d raw units, transfer of %d will fail", src.Amount, raw)
	}
	fmt.Printf("transfer:        %s (raw %d)\n", domain.FormatUIAmount(raw, m.Decimals), raw)

	accounts, err := r.TransferAccounts(ctx, mint, keys[0], keys[1], keys[2], raw)
	if err != nil {
		return err
	}
	fmt.Println("transfer accounts (append after source, mint, destination, authority):")
	for i, a := range accounts {
		fmt.Printf("  %2d %s %s\n", i, a.PublicKey, flags(a))
	}
	return nil
}

func printMint(ctx context.Context, r *resolver.Resolver, programID, mint solana.PublicKey) (*domain.Mint, error) {
	m, err := r.Mint(ctx, mint)
	if err != nil {
		return nil, err
	}

	fmt.Printf("mint:            %s\n", m.Address)
	fmt.Printf("supply:          %s (decimals %d)\n", domain.FormatUIAmount(m.Supply, m.Decimals), m.Decimals)
	if m.HookProgram != programID.String() {
		log.Warnf("mint %s is not bound to hook program %s", mint, programID)
	}

	burnAuthority, _, err := hook.BurnAuthorityAddress(programID, mint)
	if err != nil {
		return nil, err
	}
	if m.PermanentDelegate != burnAuthority.String() {
		log.Warnf("permanent delegate is not the burn authority %s; transfers will fail", burnAuthority)
	}
	fmt.Printf("burn authority:  %s\n", burnAuthority)
	return m, nil
}

func describeMeta(m hook.ExtraAccountMeta) string {
	var target string
	switch {
	case m.Discriminator == hook.MetaLiteral:
		target = solana.PublicKey(m.AddressConfig).String()
	default:
		owner := "hook"
		if m.Discriminator != hook.MetaProgramPDA {
			owner = fmt.Sprintf("account %d", m.Discriminator&^0x80)
		}
		seeds, err := hook.UnpackSeeds(m.AddressConfig)
		if err != nil {
			return fmt.Sprintf("invalid seeds: %v", err)
		}
		parts := make([]string, len(seeds))
		for i, s := range seeds {
			parts[i] = describeSeed(s)
		}
		target = fmt.Sprintf("pda(%s)[%s]", owner, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s %s", target, flags(solana.AccountMeta{IsSigner: m.IsSigner, IsWritable: m.IsWritable}))
}

func describeSeed(s hook.Seed) string {
	switch s.Kind {
	case hook.SeedLiteral:
		return fmt.Sprintf("%q", s.Bytes)
	case hook.SeedAccountKey:
		return fmt.Sprintf("key(%d)", s.Index)
	case hook.SeedInstructionData:
		return fmt.Sprintf("ix[%d:%d]", s.Index, int(s.Index)+int(s.Length))
	case hook.SeedAccountData:
		return fmt.Sprintf("data(%d)[%d:%d]", s.Index, s.DataIndex, int(s.DataIndex)+int(s.Length))
	default:
		return "?"
	}
}

func flags(a solana.AccountMeta) string {
	f := "r"
	if a.IsWritable {
		f = "w"
	}
	if a.IsSigner {
		f += "s"
	}
	return f
}
