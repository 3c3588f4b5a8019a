package report

import (
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultEvalFile is the evaluation output written by the eval pipeline
const DefaultEvalFile = "evals/eval-output.json"

// Metric groups in print order
const (
	groupOperational   = "operational_metrics"
	groupToolCall      = "tool_call_accuracy"
	groupIntent        = "intent_resolution"
	groupTaskAdherence = "task_adherence"
)

// Evaluation prints an evaluation results file
func Evaluation(w io.Writer, file string) error {
	data, err := loadResults(file)
	if err != nil {
		return err
	}

	p := &printer{w: w}
	p.banner("AGENT EVALUATION RESULTS SUMMARY")

	if metrics := data.Get("metrics"); metrics.Exists() {
		p.section("📊 OVERALL METRICS:")

		p.line("\n🔧 Operational Metrics:")
		eachWithPrefix(metrics, groupOperational, func(key string, v gjson.Result) {
			name := title(strings.ReplaceAll(strings.Replace(key, groupOperational+".", "", 1), "-", " "))
			switch {
			case strings.Contains(key, "tokens"):
				p.line("  • %s: %.0f", name, v.Float())
			case strings.Contains(key, "duration"):
				p.line("  • %s: %.2fs", name, v.Float())
			default:
				p.line("  • %s: %s", name, display(v))
			}
		})

		p.line("\n🎯 Tool Call Accuracy:")
		eachWithPrefix(metrics, groupToolCall, func(key string, v gjson.Result) {
			scoreLine(p, key, "", v)
		})

		p.line("\n💭 Intent Resolution:")
		eachWithPrefix(metrics, groupIntent, func(key string, v gjson.Result) {
			scoreLine(p, key, groupIntent, v)
		})

		p.line("\n✅ Task Adherence:")
		eachWithPrefix(metrics, groupTaskAdherence, func(key string, v gjson.Result) {
			scoreLine(p, key, groupTaskAdherence, v)
		})
	}

	if rows := data.Get("rows"); rows.Exists() {
		p.section("📝 INDIVIDUAL TEST RESULTS:")

		for i, row := range rows.Array() {
			p.line("\n🔍 Test %d: %s", i+1, queryText(row))
			p.line("📋 Response: %s", responseText(row))
			p.line("📊 Evaluation Scores:")
			printScores(p, row)
		}
	}

	p.line("\n%s", rule)
	p.line("✅ Evaluation completed successfully!")
	p.line(rule)

	return p.err
}

// eachWithPrefix visits object members whose key starts with prefix, in
// document order
func eachWithPrefix(obj gjson.Result, prefix string, fn func(key string, v gjson.Result)) {
	obj.ForEach(func(k, v gjson.Result) bool {
		if strings.HasPrefix(k.String(), prefix) {
			fn(k.String(), v)
		}
		return true
	})
}

// scoreLine prints one aggregated score. scoreKey is the suffix naming the
// average score; empty when the group has none.
func scoreLine(p *printer, key, scoreKey string, v gjson.Result) {
	switch {
	case strings.Contains(key, "binary"):
		p.line("  • Success Rate: %.0f%%", v.Float()*100)
	case scoreKey != "" && strings.HasSuffix(key, scoreKey):
		p.line("  • Average Score: %s/5", display(v))
	case strings.Contains(key, "threshold"):
		p.line("  • Threshold: %s", display(v))
	}
}

// queryText returns the last user message of the row's query
func queryText(row gjson.Result) string {
	var query string
	for _, msg := range rowField(row, "inputs.query").Array() {
		content := msg.Get("content")
		if msg.Get("role").String() != "user" || !content.Exists() {
			continue
		}
		if content.IsArray() {
			query = content.Get("0.text").String()
		} else {
			query = content.String()
		}
	}
	return query
}

// responseText returns the last text item of the assistant messages
func responseText(row gjson.Result) string {
	var response string
	for _, msg := range rowField(row, "inputs.response").Array() {
		if msg.Get("role").String() != "assistant" {
			continue
		}
		for _, item := range msg.Get("content").Array() {
			if item.Get("type").String() == "text" {
				response = item.Get("text").String()
			}
		}
	}
	return response
}

// rowField looks up a top-level key that itself contains dots
func rowField(row gjson.Result, key string) gjson.Result {
	var out gjson.Result
	row.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			out = v
			return false
		}
		return true
	})
	return out
}

func printScores(p *printer, row gjson.Result) {
	type score struct {
		metric string
		value  gjson.Result
	}

	var order []string
	scores := make(map[string][]score)

	row.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if !strings.HasPrefix(key, "outputs.") || skipOutput(key) {
			return true
		}

		parts := strings.Split(key, ".")
		evalType, metric := parts[1], parts[len(parts)-1]
		if _, seen := scores[evalType]; !seen {
			order = append(order, evalType)
		}

		// a repeated metric keeps its first position but takes the last value
		list := scores[evalType]
		for i := range list {
			if list[i].metric == metric {
				list[i].value = v
				return true
			}
		}
		scores[evalType] = append(list, score{metric: metric, value: v})
		return true
	})

	for _, evalType := range order {
		p.line("  • %s:", title(strings.ReplaceAll(evalType, "_", " ")))
		for _, s := range scores[evalType] {
			name := title(strings.ReplaceAll(s.metric, "_", " "))
			switch {
			case (s.metric == groupIntent || s.metric == groupTaskAdherence) && s.value.Type == gjson.Number:
				p.line("    - %s: %s/5", name, display(s.value))
			case s.metric == groupToolCall:
				value := display(s.value)
				if value == "not applicable" {
					value = "N/A"
				}
				p.line("    - Tool Call Accuracy: %s", value)
			case !strings.HasSuffix(s.metric, "threshold"):
				p.line("    - %s: %s", name, display(s.value))
			}
		}
	}
}

func skipOutput(key string) bool {
	for _, suffix := range []string{"_reason", "_result", "_threshold", ".details"} {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

