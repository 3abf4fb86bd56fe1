// Command memscan is the CLI front end for the memory inspection
// engine: address search, dynamic narrowing, pointer-reference
// tracing, signature extraction, and gated writes, over either a real
// process or an in-process mock.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vondutchi/vondutch-patcher/internal/access"
	"github.com/vondutchi/vondutch-patcher/internal/candidate"
	"github.com/vondutchi/vondutch-patcher/internal/codec"
	"github.com/vondutchi/vondutch-patcher/internal/config"
	"github.com/vondutchi/vondutch-patcher/internal/domainerr"
	"github.com/vondutchi/vondutch-patcher/internal/dynamic"
	"github.com/vondutchi/vondutch-patcher/internal/fixtures"
	"github.com/vondutchi/vondutch-patcher/internal/memlog"
	"github.com/vondutchi/vondutch-patcher/internal/patch"
	"github.com/vondutchi/vondutch-patcher/internal/present"
	"github.com/vondutchi/vondutch-patcher/internal/search"
	"github.com/vondutchi/vondutch-patcher/internal/session"
)

type flags struct {
	pid  int
	mock bool

	valueType   string
	value       float64
	allowRescan bool
	parallel    int

	dynamic   bool
	dynType   string
	maxSteps  int
	chunkSize int

	referenceDepth int

	save string
	load string

	useAddon        bool
	patchValue      float64
	patchType       string
	autoThreshold   int
	enforceInterval float64
	addonConfig     string
	dryRun          bool
	patchLive       bool

	logLevel string
}

func main() {
	f := &flags{}

	root := &cobra.Command{
		Use:   "memscan",
		Short: "Search, narrow, trace, and optionally patch a process's memory",
		Long: `memscan searches a target's readable memory for a numeric value, narrows
candidates across successive snapshots when the exact value is unknown,
traces pointer chains back to a discovered address, extracts a byte
signature around it, and — when explicitly enabled and confirmed — writes
a replacement value back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}

	root.Flags().IntVar(&f.pid, "pid", 0, "target process id (ignored with --mock)")
	root.Flags().BoolVar(&f.mock, "mock", false, "use the built-in deterministic mock target")

	root.Flags().StringVar(&f.valueType, "value-type", "float32", "numeric type: int32, uint32, int64, uint64, float32, float64")
	root.Flags().Float64Var(&f.value, "value", 0, "literal value to search for")
	root.Flags().BoolVar(&f.allowRescan, "allow-rescan", false, "offer to re-validate found addresses after the initial search")
	root.Flags().IntVar(&f.parallel, "parallel", 0, "max concurrent search goroutines (0 disables SearchParallel)")

	root.Flags().BoolVar(&f.dynamic, "dynamic", false, "run a dynamic (differential) scan instead of a literal search")
	root.Flags().StringVar(&f.dynType, "type", "int32", "numeric type for the dynamic scan")
	root.Flags().IntVar(&f.maxSteps, "max-steps", 4, "maximum dynamic scan steps")
	root.Flags().IntVar(&f.chunkSize, "chunk-size", 16384, "snapshot read chunk size in bytes")

	root.Flags().IntVar(&f.referenceDepth, "reference-depth", 0, "pointer reference trace depth (0 disables tracing)")

	root.Flags().StringVar(&f.save, "save", "", "save the Scan Result to this path")
	root.Flags().StringVar(&f.load, "load", "", "load a previously-saved Scan Result instead of scanning")

	root.Flags().BoolVar(&f.useAddon, "use-addon", false, "enable the write & enforcement addon")
	root.Flags().Float64Var(&f.patchValue, "patch-value", 0, "explicit value to write when the addon is enabled")
	root.Flags().StringVar(&f.patchType, "patch-type", "", "explicit numeric type to write (defaults to the scan's own type)")
	root.Flags().IntVar(&f.autoThreshold, "auto-threshold", 0, "candidate-count ceiling for auto-writes (0 uses the addon config default)")
	root.Flags().Float64Var(&f.enforceInterval, "enforce-interval", 0, "seconds between enforcement writes; 0 disables the loop")
	root.Flags().StringVar(&f.addonConfig, "addon-config", "", "path to an addon configuration file (JSON or YAML)")
	root.Flags().BoolVar(&f.dryRun, "dry-run", true, "log write intent without touching memory")
	root.Flags().BoolVar(&f.patchLive, "patch-live", false, "disable dry-run and write for real (mutually exclusive with --dry-run)")

	root.Flags().StringVar(&f.logLevel, "log-level", "info", "log level: info or debug")

	root.MarkFlagsMutuallyExclusive("dry-run", "patch-live")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(f *flags) error {
	memlog.Init(f.logLevel == "debug")

	if f.load != "" {
		result, err := session.Load(f.load)
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		printResult(result)
		return nil
	}

	backend, name, err := openBackend(f)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, err := session.Open(f.pid, name, backend)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	memlog.L.Info("session opened", zap.String("session", ctx.SessionID), zap.Int("pid", ctx.PID))

	var result session.Result
	var addrs []uint64
	var discovered map[uint64]codec.Value

	if f.dynamic {
		t := codec.Type(f.dynType)
		collab := &stdinCollaborator{reader: bufio.NewReader(os.Stdin)}
		var advancer dynamic.MockAdvancer
		if f.mock {
			advancer = fixtures.NewDynamicAdvancer(backend)
		}
		dr, err := dynamic.Run(backend, ctx.Regions, t, f.chunkSize, f.maxSteps, collab, advancer)
		if err != nil {
			return fmt.Errorf("dynamic scan: %w", err)
		}
		if len(dr.Candidates) == 0 {
			fmt.Println(domainerr.NoCandidatesError{}.Error())
			return nil
		}
		discovered = dr.Candidates
		entries := make([]session.AddressEntry, 0, len(dr.Candidates))
		for addr, v := range dr.Candidates {
			addrs = append(addrs, addr)
			cv := v.AsFloat64()
			entries = append(entries, session.AddressEntry{Address: addr, Label: ctx.Labels.Label(addr), CurrentValue: &cv})
		}
		result = session.Result{
			PID: ctx.PID, Name: ctx.Name, ValueType: t,
			ScanMode: session.Dynamic, Addresses: entries,
		}
	} else {
		t := codec.Type(f.valueType)
		var hits []uint64
		if f.parallel > 0 {
			hits, err = search.SearchParallel(backend, ctx.Regions, f.value, t, f.parallel)
		} else {
			hits, err = search.Search(backend, ctx.Regions, f.value, t)
		}
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		addrs = hits
		entries := make([]session.AddressEntry, 0, len(hits))
		for _, addr := range hits {
			v := f.value
			entries = append(entries, session.AddressEntry{Address: addr, Label: ctx.Labels.Label(addr), CurrentValue: &v})
		}
		result = session.Result{
			PID: ctx.PID, Name: ctx.Name, Value: &f.value, ValueType: t,
			ScanMode: session.Manual, Addresses: entries,
		}

		if f.allowRescan && len(addrs) > 0 {
			if promptYesNo("Rescan found addresses now? [y/N]: ") {
				result, err = ctx.Rescan(addrs, f.value, t)
				if err != nil {
					return fmt.Errorf("rescan: %w", err)
				}
			}
		}
	}

	if f.referenceDepth > 0 && len(addrs) > 0 {
		result.References = ctx.Trace(addrs, f.referenceDepth)
	}
	if len(addrs) > 0 {
		result.Signatures = ctx.Signatures(addrs, signatureWindow)
	}

	printResult(result)

	if f.save != "" {
		if err := session.Save(result, f.save); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		fmt.Printf("saved to %s\n", f.save)
	}

	if f.useAddon {
		return runAddon(f, backend, ctx, addrs, discovered, result.ScanMode == session.Dynamic)
	}
	return nil
}

const signatureWindow = 32

func openBackend(f *flags) (access.Backend, string, error) {
	if f.mock {
		return fixtures.Build(), fixtures.MockName, nil
	}
	backend, err := access.OpenNative(f.pid)
	if err != nil {
		return nil, "", fmt.Errorf("open native: %w", err)
	}
	return backend, fmt.Sprintf("pid-%d", f.pid), nil
}

func printResult(result session.Result) {
	fmt.Println(present.Addresses(result.Addresses))
	if len(result.References) > 0 {
		fmt.Println()
		fmt.Println(present.References(result.References))
	}
	if len(result.Signatures) > 0 {
		fmt.Println()
		fmt.Println(present.Signatures(result.Signatures))
	}
}

func runAddon(f *flags, backend access.Backend, ctx *session.Context, addrs []uint64, discovered map[uint64]codec.Value, isDynamic bool) error {
	cfg, err := config.Load(f.addonConfig)
	if err != nil {
		return fmt.Errorf("load addon config: %w", err)
	}

	threshold := cfg.AutoThreshold
	if f.hasThresholdOverride() {
		threshold = f.autoThreshold
	}

	var explicitValue *float64
	if f.hasPatchValueOverride() {
		explicitValue = &f.patchValue
	}
	value, haveValue := patch.ResolveValue(explicitValue, cfg.PatchValue, discovered)

	gate := patch.EvaluateGate(isDynamic, len(addrs), threshold, haveValue)
	if !gate.Allowed {
		fmt.Printf("addon autopatch blocked: reason=%s\n", gate.Reason)
		return nil
	}

	scanType := codec.Type(f.valueType)
	if isDynamic {
		scanType = codec.Type(f.dynType)
	}
	patchType := patch.ResolveType(codec.Type(f.patchType), codec.Type(cfg.PatchType), scanType)
	packedValue, err := codec.New(value, patchType)
	if err != nil {
		return fmt.Errorf("resolve patch value: %w", err)
	}

	dryRun := cfg.DryRun
	if f.patchLive {
		dryRun = false
	}

	sess := patch.NewSession(backend, ctx.Labels.Label)
	sess.SetLogPath(cfg.LogPath)
	if !dryRun {
		fmt.Printf("Type %q to enable live writes (or press Enter to cancel): ", patch.ConfirmationPhrase)
		phrase := strings.TrimSpace(readLine(bufio.NewReader(os.Stdin)))
		if !sess.Confirm(phrase) {
			fmt.Println("addon autopatch aborted (confirmation missing)")
			return nil
		}
	}

	results, batchErr := sess.Batch(addrs, packedValue, dryRun, true)
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("patch %s failed: %v\n", r.Label, r.Err)
		}
	}
	if batchErr != nil {
		memlog.L.Info("batch write completed with errors")
	}

	interval := f.enforceInterval
	if interval <= 0 {
		interval = cfg.EnforceInterval
	}
	if interval > 0 {
		fmt.Printf("entering enforcement loop (interval=%.2fs); Ctrl+C to stop\n", interval)
		sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()
		sess.Enforce(sigCtx, addrs, packedValue, time.Duration(interval*float64(time.Second)), dryRun)
	}
	return nil
}

func (f *flags) hasThresholdOverride() bool  { return f.autoThreshold > 0 }
func (f *flags) hasPatchValueOverride() bool { return f.patchValue != 0 }

// stdinCollaborator is the minimal interactive dynamic.Collaborator:
// press Enter to advance a step, type a trend name, or "q" to quit.
type stdinCollaborator struct {
	reader *bufio.Reader
}

func (c *stdinCollaborator) AwaitStepReady() bool {
	fmt.Print("Press Enter once the value has changed (or 'q' to stop): ")
	line, _ := c.reader.ReadString('\n')
	return strings.TrimSpace(line) != "q"
}

func (c *stdinCollaborator) ConfirmRegionNarrow(elapsed time.Duration) bool {
	fmt.Printf("Last snapshot took %s; narrow the scanned region? [y/N]: ", elapsed)
	return promptYesNoReader(c.reader)
}

func (c *stdinCollaborator) RequestBounds(regions []access.Region) (uint64, uint64, bool) {
	fmt.Print("New start address (hex, blank to cancel): ")
	startLine := strings.TrimSpace(readLine(c.reader))
	if startLine == "" {
		return 0, 0, false
	}
	fmt.Print("New end address (hex): ")
	endLine := strings.TrimSpace(readLine(c.reader))
	start, err1 := strconv.ParseUint(strings.TrimPrefix(startLine, "0x"), 16, 64)
	end, err2 := strconv.ParseUint(strings.TrimPrefix(endLine, "0x"), 16, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}

func (c *stdinCollaborator) RequestTrend() (candidate.Trend, bool) {
	fmt.Print("Trend (increase/decrease/unchanged, or 'q' to stop): ")
	line := strings.TrimSpace(readLine(c.reader))
	switch line {
	case "increase", "increased":
		return candidate.Increased, true
	case "decrease", "decreased":
		return candidate.Decreased, true
	case "unchanged", "same":
		return candidate.Unchanged, true
	default:
		return "", false
	}
}

func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return line
}

func promptYesNo(prompt string) bool {
	fmt.Print(prompt)
	return promptYesNoReader(bufio.NewReader(os.Stdin))
}

func promptYesNoReader(r *bufio.Reader) bool {
	line, _ := r.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
