// Command hooksim runs the burn hook end to end on the simulated ledger:
// mint 1000 tokens, initialize the registry, transfer 100 and report the burn.
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"solana-burn-hook/internal/config"
	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/fee"
	"solana-burn-hook/internal/hook"
	"solana-burn-hook/internal/ledger"
	"solana-burn-hook/internal/logging"
	"solana-burn-hook/internal/observability"
	"solana-burn-hook/internal/resolver"
	"solana-burn-hook/internal/solana"
	"solana-burn-hook/internal/storage"
	chstore "solana-burn-hook/internal/storage/clickhouse"
	"solana-burn-hook/internal/storage/memory"
	"solana-burn-hook/internal/storage/migrations"
	pgstore "solana-burn-hook/internal/storage/postgres"
	"solana-burn-hook/internal/watcher"
)

type options struct {
	decimals      uint8
	mintAmount    uint64 // whole tokens
	transfer      decimal.Decimal // UI units
	policy        fee.Policy
	postgresDSN   string
	clickhouseDSN string
}

func main() {
	config.LoadEnvFile("")

	decimals := flag.Uint("decimals", 9, "Mint decimals")
	mintAmount := flag.Uint64("mint-amount", 1000, "Tokens minted to the sender")
	transfer := flag.String("transfer", "100", "Tokens transferred, fractional values allowed")
	numerator := flag.Uint64("fee-numerator", fee.ReferenceNumerator, "Burn rate numerator")
	denominator := flag.Uint64("fee-denominator", fee.ReferenceDenominator, "Burn rate denominator")
	postgresDSN := flag.String("postgres-dsn", os.Getenv(config.EnvPostgresDSN), "Catalog the registry in PostgreSQL")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv(config.EnvClickhouseDSN), "Record executions in ClickHouse")
	metricsAddr := flag.String("metrics-addr", "", "Serve /metrics after the run until interrupted")
	logLevel := flag.String("log-level", "info", "Log level")
	logFormat := flag.String("log-format", "text", "Log format (text, json)")
	flag.Parse()

	if err := logging.Setup(*logLevel, *logFormat); err != nil {
		log.Fatalf("[hooksim] %v", err)
	}
	policy, err := fee.NewPolicy(*numerator, *denominator)
	if err != nil {
		log.Fatalf("[hooksim] %v", err)
	}
	if *decimals > 18 {
		log.Fatalf("[hooksim] decimals %d out of range", *decimals)
	}
	transferUI, err := decimal.NewFromString(*transfer)
	if err != nil || !transferUI.IsPositive() {
		log.Fatalf("[hooksim] -transfer %q is not a positive amount", *transfer)
	}

	metrics := observability.NewMetrics(observability.DefaultNamespace)
	ctx := context.Background()

	if err := run(ctx, options{
		decimals:      uint8(*decimals),
		mintAmount:    *mintAmount,
		transfer:      transferUI,
		policy:        policy,
		postgresDSN:   *postgresDSN,
		clickhouseDSN: *clickhouseDSN,
	}, metrics); err != nil {
		log.Fatalf("[hooksim] %v", err)
	}

	if *metricsAddr != "" {
		serveMetrics(*metricsAddr)
	}
}

func key(label string) solana.PublicKey {
	return solana.PublicKey(sha256.Sum256([]byte("hooksim/" + label)))
}

func run(ctx context.Context, opts options, metrics *observability.Metrics) error {
	var (
		programID = key("program")
		mint      = key("mint")
		payer     = key("payer")
		recipient = key("recipient")
	)
	unit := pow10(opts.decimals)
	logger := log.WithField("component", "hooksim")

	l := ledger.New(ledger.WithLogger(log.WithField("component", "ledger")))
	prog, err := hook.NewProgram(programID,
		hook.WithPolicy(opts.policy),
		// Successful executions are counted by the watcher from the receipt logs.
		hook.WithObserver(func(_ *hook.ExecutionLog, err error) {
			if err != nil {
				metrics.RecordExecution(hook.Kind(err), "", 0)
			}
		}),
	)
	if err != nil {
		return err
	}
	l.RegisterProgram(prog)

	if _, err := l.Airdrop(payer, 10_000_000_000); err != nil {
		return err
	}
	burnAuthority, _, err := hook.BurnAuthorityAddress(programID, mint)
	if err != nil {
		return err
	}
	if _, err := l.CreateMint(ledger.MintConfig{
		Mint:                  mint,
		Payer:                 payer,
		MintAuthority:         payer,
		Decimals:              opts.decimals,
		TransferHookProgram:   &programID,
		TransferHookAuthority: &payer,
		PermanentDelegate:     &burnAuthority,
	}); err != nil {
		return fmt.Errorf("create mint: %w", err)
	}
	source, _, err := l.CreateAssociatedTokenAccount(payer, payer, mint)
	if err != nil {
		return err
	}
	destination, _, err := l.CreateAssociatedTokenAccount(payer, recipient, mint)
	if err != nil {
		return err
	}
	if _, err := l.MintTo(mint, source, payer, opts.mintAmount*unit); err != nil {
		return fmt.Errorf("mint to: %w", err)
	}

	if _, err := hook.NewClient(l, programID).InitializeRegistry(mint, payer); err != nil {
		return fmt.Errorf("initialize registry: %w", err)
	}

	var resolverOpts []resolver.Option
	executions := storage.ExecutionStore(memory.NewExecutionStore())
	if opts.postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
		catalog := storage.InstrumentRegistries(pgstore.NewRegistryStore(pool), metrics, "postgres")
		resolverOpts = append(resolverOpts, resolver.WithCatalog(catalog))
	}
	if opts.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		executions = storage.InstrumentExecutions(chstore.NewExecutionStore(conn), metrics, "clickhouse")
	}

	r := resolver.New(programID, l.RPC(), resolverOpts...)
	amount, err := domain.RawAmount(opts.transfer, opts.decimals)
	if err != nil {
		return fmt.Errorf("-transfer: %w", err)
	}
	extra, err := r.TransferAccounts(ctx, mint, source, destination, payer, amount)
	if err != nil {
		return fmt.Errorf("resolve transfer accounts: %w", err)
	}

	sourceBefore, _ := l.BalanceOf(source)
	destBefore, _ := l.BalanceOf(destination)
	supplyBefore, _ := l.Supply(mint)

	receipt, err := l.TransferChecked(ledger.TransferParams{
		Source:             source,
		Mint:               mint,
		Destination:        destination,
		Authority:          payer,
		Amount:             amount,
		Decimals:           opts.decimals,
		Signers:            []solana.PublicKey{payer},
		AdditionalAccounts: extra,
	})
	if err != nil {
		for _, line := range receiptLogs(receipt) {
			logger.Debug(line)
		}
		return fmt.Errorf("transfer: %w", err)
	}

	w, err := watcher.New(watcher.Options{
		ProgramID:  programID,
		Executions: executions,
		Progress:   memory.NewProgressStore(),
		Metrics:    metrics,
	})
	if err != nil {
		return err
	}
	if _, err := w.Process(ctx, solana.LogNotification{
		Signature: receipt.Signature,
		Slot:      receipt.Slot,
		Logs:      receipt.Logs,
	}); err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	sourceAfter, _ := l.BalanceOf(source)
	destAfter, _ := l.BalanceOf(destination)
	supplyAfter, _ := l.Supply(mint)
	burned, err := executions.TotalBurned(ctx, mint.String())
	if err != nil {
		return err
	}

	ui := func(v uint64) string { return domain.FormatUIAmount(v, opts.decimals) }
	fmt.Printf("policy:       %s\n", opts.policy)
	fmt.Printf("signature:    %s (slot %d)\n", receipt.Signature, receipt.Slot)
	fmt.Printf("transferred:  %s\n", ui(amount))
	fmt.Printf("burned:       %s (%d raw)\n", ui(burned), burned)
	fmt.Printf("source:       %s -> %s\n", ui(sourceBefore), ui(sourceAfter))
	fmt.Printf("destination:  %s -> %s\n", ui(destBefore), ui(destAfter))
	fmt.Printf("supply:       %s -> %s\n", ui(supplyBefore), ui(supplyAfter))

	expected, err := opts.policy.BurnAmount(amount)
	if err != nil {
		return err
	}
	if sourceBefore-sourceAfter != amount || destAfter-destBefore != amount-expected || supplyBefore-supplyAfter != expected {
		return fmt.Errorf("conservation violated: burn %d expected %d", burned, expected)
	}
	logger.Info("conservation holds")
	return nil
}

func receiptLogs(r *ledger.Receipt) []string {
	if r == nil {
		return nil
	}
	return r.Logs
}

func pow10(n uint8) uint64 {
	v := uint64(1)
	for i := uint8(0); i < n; i++ {
		v *= 10
	}
	return v
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		srv.Close()
	}()

	log.Infof("[hooksim] serving metrics on %s, interrupt to exit", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[hooksim] %v", err)
	}
}
