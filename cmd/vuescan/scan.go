package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/praetorian-inc/vuescan"
	"github.com/praetorian-inc/vuescan/pkg/config"
	"github.com/praetorian-inc/vuescan/pkg/rule"
	"github.com/praetorian-inc/vuescan/pkg/sarif"
	"github.com/praetorian-inc/vuescan/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	scanRulesPath    string
	scanRulesInclude string
	scanRulesExclude string
	scanOutputFormat string
	scanColor        string
	scanMaxFileSize  int64
	scanParallel     bool
	scanUnlimited    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <file>...",
	Short: "Scan source files for vulnerabilities",
	Long:  "Run the detection rules against each file and print the findings",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRulesPath, "rules", "", "Path to custom rules file or directory")
	scanCmd.Flags().StringVar(&scanRulesInclude, "rules-include", "", "Include rules matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanRulesExclude, "rules-exclude", "", "Exclude rules matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: human, json, sarif")
	scanCmd.Flags().StringVar(&scanColor, "color", "auto", "Color output: auto, always, never")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to scan (bytes)")
	scanCmd.Flags().BoolVar(&scanParallel, "parallel", false, "Run each file's rules on a worker pool")
	scanCmd.Flags().BoolVar(&scanUnlimited, "unlimited", false, "Ignore the rule and finding caps")
}

// fileFindings is the JSON shape of one scanned file.
type fileFindings struct {
	File     string           `json:"file"`
	Findings []*types.Finding `json:"findings"`
}

func runScan(cmd *cobra.Command, args []string) error {
	c, log := settings()

	switch scanOutputFormat {
	case "human", "json", "sarif":
	default:
		return fmt.Errorf("unknown output format: %s", scanOutputFormat)
	}

	budget, err := c.ToBudget()
	if err != nil {
		return err
	}

	path := scanRulesPath
	if path == "" {
		path = c.Rules.Path
	}
	filter := rule.FilterConfig{Include: c.Rules.Include, Exclude: c.Rules.Exclude}
	if scanRulesInclude != "" {
		filter.Include = rule.ParsePatterns(scanRulesInclude)
	}
	if scanRulesExclude != "" {
		filter.Exclude = rule.ParsePatterns(scanRulesExclude)
	}
	rules, err := loadRules(path, filter)
	if err != nil {
		return err
	}

	engine := vuescan.NewEngine(engineOptions(c, log)...)
	defer engine.Close()
	if err := engine.Initialize(rules); err != nil {
		return err
	}

	var results []fileFindings
	total := 0
	for _, file := range args {
		content, err := readSource(file)
		if err != nil {
			log.Warn("skipping file", zap.String("file", file), zap.Error(err))
			continue
		}

		var findings []*types.Finding
		if scanUnlimited {
			findings, err = engine.DetectUnlimited(file, content)
		} else {
			findings, err = engine.Detect(file, content, budget)
		}
		if err != nil {
			return fmt.Errorf("scanning %s: %w", file, err)
		}
		log.Debug("scanned file", zap.String("file", file), zap.Int("findings", len(findings)))
		results = append(results, fileFindings{File: file, Findings: findings})
		total += len(findings)
	}

	switch scanOutputFormat {
	case "json":
		return outputScanJSON(cmd.OutOrStdout(), results)
	case "sarif":
		return outputScanSARIF(cmd.OutOrStdout(), rules, results)
	default:
		return outputScanHuman(cmd.OutOrStdout(), results, total)
	}
}

func engineOptions(c *config.Config, log *zap.Logger) []vuescan.Option {
	opts := []vuescan.Option{
		vuescan.WithLogger(log),
		vuescan.WithRegexTimeout(c.Engine.RegexTimeout),
		vuescan.WithBatchTimeout(c.Engine.BatchTimeout),
		vuescan.WithPoolSize(c.Engine.PoolSize),
		vuescan.WithSuppressions(c.Engine.Suppressions...),
	}
	if c.Engine.Parallel || scanParallel {
		opts = append(opts, vuescan.WithParallel())
	}
	if c.Engine.OptimizePatterns {
		opts = append(opts, vuescan.WithOptimizePatterns())
	}
	if c.Engine.Dedupe {
		opts = append(opts, vuescan.WithDedupe())
	}
	if conf := c.MinConfidence(); conf != "" {
		opts = append(opts, vuescan.WithMinConfidence(conf))
	}
	return opts
}

func readSource(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if scanMaxFileSize > 0 && info.Size() > scanMaxFileSize {
		return "", fmt.Errorf("file is %d bytes, limit is %d", info.Size(), scanMaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func outputScanJSON(out io.Writer, results []fileFindings) error {
	if results == nil {
		results = []fileFindings{}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func outputScanSARIF(out io.Writer, rules []*types.Rule, results []fileFindings) error {
	report := sarif.NewReport(version)
	for _, r := range rules {
		report.AddRule(r)
	}
	for _, r := range results {
		for _, f := range r.Findings {
			report.AddResult(f)
		}
	}

	data, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("encoding SARIF: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// styles holds the color formatters for human output.
type styles struct {
	severity map[types.Severity]*color.Color
	location *color.Color
	heading  *color.Color
	match    *color.Color
	metadata *color.Color
}

func newStyles(enabled bool) *styles {
	s := &styles{
		severity: map[types.Severity]*color.Color{
			types.SeverityCritical: color.New(color.Bold, color.FgHiRed),
			types.SeverityHigh:     color.New(color.FgRed),
			types.SeverityMedium:   color.New(color.FgYellow),
			types.SeverityLow:      color.New(color.FgHiBlue),
		},
		location: color.New(color.FgHiGreen),
		heading:  color.New(color.Bold),
		match:    color.New(color.FgYellow),
		metadata: color.New(color.FgHiBlue),
	}

	if !enabled {
		for _, c := range s.severity {
			c.DisableColor()
		}
		s.location.DisableColor()
		s.heading.DisableColor()
		s.match.DisableColor()
		s.metadata.DisableColor()
	}
	return s
}

// colorEnabled applies the --color flag. "auto" colors only a terminal
// without NO_COLOR set.
func colorEnabled() bool {
	switch scanColor {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

func outputScanHuman(out io.Writer, results []fileFindings, total int) error {
	s := newStyles(colorEnabled())

	for _, r := range results {
		for _, f := range r.Findings {
			sev := s.severity[f.Severity]
			if sev == nil {
				sev = s.heading
			}
			fmt.Fprintf(out, "%s %s (%s)\n", sev.Sprintf("[%s]", f.Severity), s.heading.Sprint(f.Type), f.RuleID)
			fmt.Fprintf(out, "  %s  confidence: %s\n", s.location.Sprintf("%s:%d", f.File, f.Line), f.Confidence)
			fmt.Fprintf(out, "  %s\n", s.match.Sprint(strings.TrimSpace(f.CodeSnippet)))
			if len(f.DataFlowSignals) > 0 {
				signals := make([]string, 0, len(f.DataFlowSignals))
				for _, sig := range f.DataFlowSignals {
					signals = append(signals, string(sig))
				}
				fmt.Fprintf(out, "  %s %s\n", s.metadata.Sprint("signals:"), strings.Join(signals, ", "))
			}
			if f.Recommendation != "" {
				fmt.Fprintf(out, "  %s %s\n", s.metadata.Sprint("fix:"), f.Recommendation)
			}
			fmt.Fprintln(out)
		}
	}

	fmt.Fprintf(out, "%s in %d file(s)\n", s.heading.Sprintf("%d finding(s)", total), len(results))
	return nil
}
