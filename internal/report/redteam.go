package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

// DefaultScanRoot is where red team scans write their output directories
const DefaultScanRoot = "redteam_outputs"

var (
	// ErrNoScans is returned when no scan directory exists under the scan root
	ErrNoScans = errors.New("no red team scan results found")

	// ErrScanDirNotFound is returned for an explicit scan directory that does not exist
	ErrScanDirNotFound = errors.New("scan directory not found")
)

var (
	vulnerable = color.New(color.FgRed, color.Bold)
	secure     = color.New(color.FgGreen, color.Bold)
)

// LatestScan returns the most recently modified .scan_* directory under root
func LatestScan(root string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, ".scan_*"))
	if err != nil {
		return "", err
	}

	var latest string
	var latestMod int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		if mod := info.ModTime().UnixNano(); latest == "" || mod > latestMod {
			latest, latestMod = m, mod
		}
	}

	if latest == "" {
		return "", ErrNoScans
	}
	return latest, nil
}

// NoScansHint is printed when there is nothing to report
func NoScansHint(w io.Writer) {
	fmt.Fprintln(w, "❌ No red team scan results found.")
	fmt.Fprintln(w, "Run the red team scan first with: python airedteaming/ai_redteaming.py")
}

// RedTeam prints the results of the scan stored in scanDir
func RedTeam(w io.Writer, scanDir string) error {
	if info, err := os.Stat(scanDir); err != nil || !info.IsDir() {
		return &resultsError{
			msg: fmt.Sprintf("Scan directory not found: %s", scanDir),
			err: ErrScanDirNotFound,
		}
	}

	resultsFile := filepath.Join(scanDir, "final_results.json")
	scorecardFile := filepath.Join(scanDir, "scorecard.txt")

	data, err := loadResults(resultsFile)
	if err != nil {
		return err
	}

	p := &printer{w: w}
	p.banner("🛡️  AI RED TEAM SECURITY SCAN RESULTS")

	name := filepath.Base(scanDir)
	parts := strings.Split(name, "_")
	p.line("\n📂 Scan Directory: %s", name)
	p.line("📊 Scan Date: %s", fromEnd(parts, 2))
	p.line("🕐 Scan Time: %s", fromEnd(parts, 1))

	var asr float64
	if overall := data.Get("scorecard.risk_category_summary.0"); overall.Exists() {
		asr = overall.Get("overall_asr").Float() * 100

		status := secure.Sprint("✅ SECURE")
		if asr > 0 {
			status = vulnerable.Sprint("🚨 VULNERABLE")
		}

		p.section("🎯 OVERALL SECURITY ASSESSMENT:")
		p.line("  • Attack Success Rate (ASR): %.1f%%", asr)
		p.line("  • Total Attacks Attempted: %s", displayOr(overall.Get("overall_total"), "0"))
		p.line("  • Successful Attacks: %s", displayOr(overall.Get("overall_attack_successes"), "0"))
		p.line("  • Security Status: %s", status)
	}

	params := data.Get("parameters")
	p.section("🔍 SCAN CONFIGURATION:")
	p.line("  • Risk Categories Tested: %s", title(joinStrings(params.Get("attack_objective_generated_from.risk_categories"))))
	p.line("  • Attack Complexity Levels: %s", title(joinStrings(params.Get("attack_complexity"))))

	if attacks := data.Get("attack_details").Array(); len(attacks) > 0 {
		p.section("⚔️  ATTACK DETAILS:")
		for i, attack := range attacks {
			success := "❌ Failed"
			if attack.Get("attack_success").Bool() {
				success = "✅ Succeeded"
			}

			p.line("\n🔍 Attack %d:", i+1)
			p.line("  • Technique: %s", title(stringOr(attack.Get("attack_technique"), "Unknown")))
			p.line("  • Complexity: %s", title(stringOr(attack.Get("attack_complexity"), "Unknown")))
			p.line("  • Risk Category: %s", title(stringOr(attack.Get("risk_category"), "Unknown")))
			p.line("  • Success: %s", success)

			if turns := attack.Get("conversation").Array(); len(turns) > 0 {
				response := "No response"
				if len(turns) > 1 {
					response = turns[1].Get("content").String()
				}
				p.line("  • Attack Prompt: %s", truncate(turns[0].Get("content").String(), 100))
				p.line("  • Agent Response: %s", response)
			}
		}
	}

	if scorecard, err := os.ReadFile(scorecardFile); err == nil {
		p.section("📈 RISK ASSESSMENT MATRIX:")
		for _, line := range strings.Split(strings.TrimSpace(string(scorecard)), "\n") {
			if strings.TrimSpace(line) != "" && !strings.HasPrefix(line, "-") {
				p.line("  %s", line)
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		p.section("📈 RISK ASSESSMENT MATRIX:")
		p.line("  Could not read scorecard: %v", err)
	}

	if studio := data.Get("studio_url").String(); studio != "" {
		p.section("🔗 DETAILED ANALYSIS:")
		p.line("  • Azure AI Foundry: %s", studio)
	}

	p.section("📁 LOCAL RESULTS:")
	p.line("  • Full Results: %s", resultsFile)
	p.line("  • Scan Directory: %s", scanDir)

	p.section("💡 SECURITY RECOMMENDATIONS:")
	if asr == 0 {
		p.line("  ✅ Your agent successfully defended against all attack attempts")
		p.line("  ✅ No harmful content was generated")
		p.line("  ✅ Safety mechanisms are working effectively")
		p.line("  💡 Continue monitoring with regular red team scans")
	} else {
		p.line("  🚨 Your agent showed vulnerabilities to adversarial attacks")
		p.line("  🚨 Review and strengthen safety guardrails")
		p.line("  🚨 Consider additional content filtering")
		p.line("  💡 Implement additional safety measures before production")
	}

	p.line("\n%s", rule)
	p.line("🛡️  Red Team Security Scan Analysis Complete!")
	p.line(rule)

	return p.err
}

// fromEnd returns the nth element counted from the end, 1 being the last
func fromEnd(parts []string, n int) string {
	if len(parts) < n {
		return "unknown"
	}
	return parts[len(parts)-n]
}
