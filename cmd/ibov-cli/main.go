package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"ibovtech/internal/config"
	"ibovtech/internal/domain"
	"ibovtech/internal/store"
	"ibovtech/pkg/ibovtech"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ibov-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                 Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  runs [-n N] [-date D]   List recent runs, or the last success for YYYYMMDD\n")
		fmt.Fprintf(os.Stderr, "  inspect <file.parquet>  Print the records of a staged artifact\n")
		fmt.Fprintf(os.Stderr, "  health [addr]           Query the scheduler health endpoint\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("ibov-cli %s\n", version)

	case "runs":
		fs := flag.NewFlagSet("runs", flag.ExitOnError)
		n := fs.Int("n", 20, "number of runs to show")
		date := fs.String("date", "", "show the last successful run for this YYYYMMDD collection date")
		_ = fs.Parse(os.Args[2:])
		if err := listRuns(loadConfig(), *n, *date); err != nil {
			log.Fatalf("runs: %v", err)
		}

	case "inspect":
		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, "inspect: missing file argument\n")
			os.Exit(1)
		}
		if err := inspect(os.Args[2]); err != nil {
			log.Fatalf("inspect: %v", err)
		}

	case "health":
		addr := loadConfig().Server.HealthAddr
		if len(os.Args) >= 3 {
			addr = os.Args[2]
		}
		if addr == "" {
			log.Fatalf("health: no address given and server.health_addr is not set")
		}
		if err := health(addr); err != nil {
			log.Fatalf("health: %v", err)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfgPath := "config/ibovtech.yaml"
	if p := os.Getenv("IBOVTECH_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func listRuns(cfg *config.Config, n int, date string) error {
	ledger, err := store.NewSQLiteLedger(cfg.Storage.LedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	var runs []store.RunRecord
	if date != "" {
		if _, err := time.Parse(domain.DateLayout, date); err != nil {
			return fmt.Errorf("invalid date %q, want YYYYMMDD", date)
		}
		last, err := ledger.LastSuccess(context.Background(), date)
		if err != nil {
			return err
		}
		if last == nil {
			fmt.Printf("no successful run for %s\n", date)
			return nil
		}
		runs = []store.RunRecord{*last}
	} else if runs, err = ledger.ListRuns(context.Background(), n); err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDATE\tSTATE\tRECORDS\tDURATION\tKEY / ERROR")
	for _, r := range runs {
		detail := r.Key
		if !r.Succeeded() {
			detail = r.FailedStage + ": " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.CollectionDate, r.State, r.Records,
			r.Duration().Round(time.Millisecond), detail)
	}
	return tw.Flush()
}

func inspect(path string) error {
	batch, err := store.ReadArtifact(path)
	if err != nil {
		return err
	}

	fmt.Printf("collection date: %s\n", batch.DateKey())
	fmt.Printf("source:          %s\n", batch.SourceURL)
	fmt.Printf("records:         %d\n", batch.Len())
	fmt.Printf("total quantity:  %d\n\n", batch.TotalQuantity())

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tCOMPANY\tCLASS\tQUANTITY\tWEIGHT %\t")
	for _, r := range batch.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t\n",
			r.Symbol, r.Company, r.ShareClass, r.TheoreticalQuantity, r.WeightPercent.StringFixed(3))
	}
	return tw.Flush()
}

func health(addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := ibovtech.NewClient(addr).Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%-20s %s\n", "process", st.Process)
	fmt.Printf("%-20s %s\n", ibovtech.PipelineService, st.Pipeline)
	if !st.Healthy() {
		os.Exit(2)
	}
	return nil
}
