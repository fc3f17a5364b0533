// Package main provides offline tooling for vesting schedules:
// address derivation, account decoding, release math and request signing.
//
// Usage:
//
//	inspect derive -authority A -beneficiary B -mint M
//	inspect ata -owner O -mint M
//	inspect decode -address S -data <base64>
//	inspect releasable -start T0 -end T1 -total N [-claimed C] [-at T]
//	inspect keygen
//	inspect sign -key K -op create_schedule|claim [request flags]
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"

	"solana-vesting/internal/api"
	"solana-vesting/internal/auth"
	"solana-vesting/internal/domain"
	"solana-vesting/internal/idhash"
	"solana-vesting/internal/vesting"
)

type command struct {
	name  string
	usage string
	run   func(args []string, out io.Writer) error
}

var commands = []command{
	{"derive", "derive the schedule address of an (authority, beneficiary, mint) triple", runDerive},
	{"ata", "derive the associated token account of an owner for a mint", runATA},
	{"decode", "decode a base64 schedule account", runDecode},
	{"releasable", "compute releasable and claimable amounts at a time", runReleasable},
	{"keygen", "generate an ed25519 keypair", runKeygen},
	{"sign", "sign a create_schedule or claim request body", runSign},
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	for _, cmd := range commands {
		if cmd.name == os.Args[1] {
			if err := cmd.run(os.Args[2:], os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.name, err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: inspect <command> [flags]")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-11s %s\n", cmd.name, cmd.usage)
	}
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runDerive(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	authority := fs.String("authority", "", "authority public key")
	beneficiary := fs.String("beneficiary", "", "beneficiary public key")
	mint := fs.String("mint", "", "mint public key")
	programID := fs.String("program-id", envOr("VESTING_PROGRAM_ID", idhash.VestingProgramID), "vesting program id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	address, bump, err := idhash.DeriveScheduleAddress(*programID, *authority, *beneficiary, *mint)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]interface{}{
		"address":    address,
		"bump":       bump,
		"program_id": *programID,
	})
}

func runATA(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ata", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner public key")
	mint := fs.String("mint", "", "mint public key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	address, err := idhash.DeriveAssociatedTokenAddress(*owner, *mint)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]string{"address": address})
}

func runDecode(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	address := fs.String("address", "", "schedule address (informational)")
	data := fs.String("data", "", "base64 account data")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(*data)
	if err != nil {
		return fmt.Errorf("decode base64: %w", err)
	}
	s, err := vesting.DecodeScheduleAccount(*address, raw)
	if err != nil {
		return err
	}
	return writeJSON(out, s)
}

func runReleasable(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("releasable", flag.ContinueOnError)
	start := fs.Int64("start", 0, "start time (unix seconds)")
	end := fs.Int64("end", 0, "end time (unix seconds)")
	total := fs.Uint64("total", 0, "total amount (base units)")
	claimed := fs.Uint64("claimed", 0, "already claimed amount")
	at := fs.Int64("at", time.Now().Unix(), "evaluation time (unix seconds)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *end <= *start {
		return vesting.ErrInvalidTimeRange
	}
	if *claimed > *total {
		return errors.New("claimed exceeds total")
	}

	s := &domain.VestingSchedule{
		StartTime:     *start,
		EndTime:       *end,
		TotalAmount:   *total,
		ClaimedAmount: *claimed,
	}
	return writeJSON(out, map[string]interface{}{
		"at":         *at,
		"releasable": vesting.ReleasableAt(s, *at),
		"claimable":  vesting.ClaimableAt(s, *at),
		"status":     vesting.StatusAt(s, *at),
	})
}

func runKeygen(_ []string, out io.Writer) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]string{
		"public_key":  base58.Encode(pub),
		"private_key": base58.Encode(priv),
	})
}

func runSign(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	key := fs.String("key", os.Getenv("SIGNER_KEY"), "base58 ed25519 private key (64 bytes)")
	op := fs.String("op", auth.OpClaim, "operation: create_schedule or claim")
	beneficiary := fs.String("beneficiary", "", "beneficiary public key")
	mint := fs.String("mint", "", "mint public key")
	source := fs.String("source", "", "source token account (create_schedule)")
	start := fs.Int64("start", 0, "start time (create_schedule)")
	end := fs.Int64("end", 0, "end time (create_schedule)")
	total := fs.Uint64("total", 0, "total amount (create_schedule)")
	receiving := fs.String("receiving", "", "receiving token account (claim, optional)")
	ttl := fs.Duration("ttl", 5*time.Minute, "signature validity")
	if err := fs.Parse(args); err != nil {
		return err
	}

	priv, err := auth.ParsePrivateKey(*key)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(*ttl).Unix()

	switch *op {
	case auth.OpCreateSchedule:
		fields := api.CreateFields(*beneficiary, *mint, *source, *start, *end, *total)
		return writeJSON(out, api.CreateScheduleRequest{
			Beneficiary:   *beneficiary,
			Mint:          *mint,
			SourceAccount: *source,
			StartTime:     *start,
			EndTime:       *end,
			TotalAmount:   *total,
			Auth:          auth.Sign(priv, auth.OpCreateSchedule, fields, expiresAt),
		})
	case auth.OpClaim:
		fields := api.ClaimFields(*beneficiary, *mint, *receiving)
		return writeJSON(out, api.ClaimRequest{
			Beneficiary:      *beneficiary,
			Mint:             *mint,
			ReceivingAccount: *receiving,
			Auth:             auth.Sign(priv, auth.OpClaim, fields, expiresAt),
		})
	default:
		return fmt.Errorf("unknown operation %q", *op)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
