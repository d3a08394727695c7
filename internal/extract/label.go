package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/IshaanNene/pricetracker/internal/fetcher"
	"github.com/IshaanNene/pricetracker/internal/parser"
	"github.com/IshaanNene/pricetracker/internal/types"
)

// Words too generic to identify a room type on their own.
var labelStopwords = map[string]bool{
	"the": true, "and": true, "with": true, "for": true,
	"room": true, "rooms": true, "bed": true, "a": true, "an": true,
}

// significantWords splits label into lower-case words worth matching alone.
func significantWords(label string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(label)) {
		w = strings.Trim(w, ",.()-/")
		if len(w) < 3 || labelStopwords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// labelScore rates how well text names the wanted room. A full label match
// outranks any number of word matches; zero means no match.
func labelScore(text, label string) int {
	t := strings.ToLower(text)
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return 0
	}
	words := significantWords(label)
	if strings.Contains(t, l) {
		return len(words) + 100
	}
	n := 0
	for _, w := range words {
		if strings.Contains(t, w) {
			n++
		}
	}
	return n
}

// MatchRoom looks for label on the page and a price inside the same
// structural container. Room rows are tried first; then every element whose
// own text names the room, walking ancestors up to the plan's depth limit.
// The returned candidate's Label is the matched room name as displayed.
func (r *Runner) MatchRoom(ctx context.Context, sess fetcher.Session, plan Plan, label string) (types.Candidate, bool, error) {
	if strings.TrimSpace(label) == "" {
		return types.Candidate{}, false, nil
	}
	if c, ok := r.matchRows(sess, plan, label); ok {
		return c, true, nil
	}
	if err := ctx.Err(); err != nil {
		return types.Candidate{}, false, err
	}
	c, ok, err := r.matchNodes(sess, plan, label)
	if err != nil {
		return types.Candidate{}, false, err
	}
	return c, ok, nil
}

type rowMatch struct {
	row   fetcher.Element
	name  string
	score int
}

// matchRows scans configured room rows and prices the best-named one.
func (r *Runner) matchRows(sess fetcher.Session, plan Plan, label string) (types.Candidate, bool) {
	var best *rowMatch
	for _, sel := range plan.RowSelectors {
		rows, err := sess.QueryAll(sel)
		if err != nil {
			r.logger.Debug("row selector failed", "selector", sel, "error", err)
			continue
		}
		for _, row := range rows {
			name := roomName(row, plan.RoomNameSelectors)
			if name == "" {
				continue
			}
			if s := labelScore(name, label); s > 0 && (best == nil || s > best.score) {
				best = &rowMatch{row: row, name: name, score: s}
			}
		}
	}
	if best == nil {
		return types.Candidate{}, false
	}

	c, ok := priceWithin(best.row, plan)
	if !ok {
		r.logger.Debug("matched room row has no price", "room", best.name)
		return types.Candidate{}, false
	}
	c.Label = best.name
	return c, true
}

func roomName(row fetcher.Element, selectors []string) string {
	for _, sel := range selectors {
		els, err := row.QueryAll(sel)
		if err != nil || len(els) == 0 {
			continue
		}
		if text, err := els[0].Text(); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

// priceWithin prices a container: configured selectors first, then
// currency leaves ranked like the heuristic tier.
func priceWithin(container fetcher.Element, plan Plan) (types.Candidate, bool) {
	if c, v, _ := firstBySelectors(container, plan.PriceSelectors, plan.Ranges.Selector); v == parser.Accepted {
		c.Tier = types.TierSelector
		return c, true
	}
	if c, v := bestScored(container, []string{scopedCurrencyLeavesXPath}, plan.Ranges.Heuristic); v == parser.Accepted {
		c.Tier = types.TierHeuristic
		return c, true
	}
	return types.Candidate{}, false
}

// matchNodes finds elements whose own text names the room and walks up
// from each until an ancestor holds a price.
func (r *Runner) matchNodes(sess fetcher.Session, plan Plan, label string) (types.Candidate, bool, error) {
	xpath := labelXPath(label)
	if xpath == "" {
		return types.Candidate{}, false, nil
	}
	nodes, err := sess.QueryAll(xpath)
	if err != nil {
		return types.Candidate{}, false, fmt.Errorf("label lookup: %w", err)
	}

	type nodeMatch struct {
		el    fetcher.Element
		text  string
		score int
	}
	var matches []nodeMatch
	top := 0
	for _, n := range nodes {
		text, err := n.Text()
		if err != nil {
			continue
		}
		s := labelScore(text, label)
		if s == 0 {
			continue
		}
		matches = append(matches, nodeMatch{el: n, text: strings.TrimSpace(text), score: s})
		if s > top {
			top = s
		}
	}

	for _, m := range matches {
		if m.score < top {
			continue
		}
		c, ok := r.walkUp(m.el, plan)
		if !ok {
			continue
		}
		c.Label = displayLabel(m.text, label)
		return c, true, nil
	}
	return types.Candidate{}, false, nil
}

// walkUp climbs from el through at most plan.MaxAncestorDepth ancestors,
// never past body, and prices the first one that holds a currency value.
func (r *Runner) walkUp(el fetcher.Element, plan Plan) (types.Candidate, bool) {
	cur := el
	for depth := 0; depth < plan.MaxAncestorDepth; depth++ {
		parent, ok := cur.Parent()
		if !ok || parent.TagName() == "body" || parent.TagName() == "html" {
			return types.Candidate{}, false
		}
		if c, ok := priceWithin(parent, plan); ok {
			r.logger.Debug("room priced via container", "depth", depth+1, "value", c.Value)
			return c, true
		}
		cur = parent
	}
	return types.Candidate{}, false
}

// displayLabel trims a long matched text down to the label when possible.
func displayLabel(text, label string) string {
	lt := strings.ToLower(text)
	ll := strings.ToLower(label)
	if i := strings.Index(lt, ll); i >= 0 && len(lt) == len(text) {
		return text[i : i+len(ll)]
	}
	if len(text) > 120 {
		return strings.TrimSpace(text[:120])
	}
	return text
}

const upperASCII = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
const lowerASCII = "abcdefghijklmnopqrstuvwxyz"

// labelXPath selects elements whose direct text mentions the label or any
// significant word of it, case-insensitively.
func labelXPath(label string) string {
	terms := append([]string{strings.ToLower(strings.TrimSpace(label))}, significantWords(label)...)
	var conds []string
	for _, t := range terms {
		t = strings.ReplaceAll(t, "'", "")
		if t == "" {
			continue
		}
		conds = append(conds, fmt.Sprintf("contains(translate(text(), '%s', '%s'), '%s')", upperASCII, lowerASCII, t))
	}
	if len(conds) == 0 {
		return ""
	}
	return "xpath://body//*[not(self::script) and not(self::style)][" + strings.Join(conds, " or ") + "]"
}
