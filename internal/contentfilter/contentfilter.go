// Package contentfilter checks participant-generated text against an
// ordered table of blocked patterns before it is persisted or published.
package contentfilter

import "regexp"

type rule struct {
	pattern *regexp.Regexp
	reason  string
}

// Filter evaluates text against a fixed, ordered set of blocked-content
// rules. The first matching rule wins, mirroring the validation-chain style
// the rest of this codebase uses for config and turn validation.
type Filter struct {
	rules []rule
}

// blockedPatterns is the ordered (pattern, reason) table. Order matters only
// in that the first match determines the reported reason; patterns do not
// overlap in practice.
var blockedPatterns = []struct {
	pattern string
	reason  string
}{
	{`(?i)\b(?:kill\s+all|exterminate|genocide)\b`, "Incitement to violence/genocide"},
	{`(?i)\b(?:racial\s+supremacy|white\s+power|ethnic\s+cleansing)\b`, "Hate speech (supremacism)"},
	{`(?i)\b(?:gas\s+the|lynch|enslave)\s+\w+`, "Hate speech (violence against groups)"},
	{`(?i)\b(?:how\s+to\s+(?:make\s+a\s+bomb|build\s+(?:a\s+)?weapon|synthesize\s+poison))\b`, "Illegal activity instructions"},
	{`(?i)\b(?:terrorist\s+attack\s+plan|mass\s+(?:shooting|murder)\s+guide)\b`, "Terrorism-related content"},
	{`(?i)\b(?:how\s+to\s+(?:hack|steal\s+identity|launder\s+money|traffic\s+(?:drugs|humans)))\b`, "Illegal activity instructions"},
	{`(?i)\b(?:child\s+(?:porn|exploitation|abuse))\b`, "Child exploitation content"},
	{`인종\s*청소|민족\s*말살|학살\s*해야`, "혐오 발언 (인종/민족)"},
	{`(?:여성\s*혐오|남성\s*혐오|장애인\s*혐오).*(?:죽|없애|제거)`, "혐오 발언 (차별적 폭력)"},
	{`폭탄\s*(?:만들|제조)|무기\s*제작|독극물\s*합성`, "불법 활동 지침"},
	{`테러\s*계획|총기\s*난사\s*방법`, "테러 관련 콘텐츠"},
	{`마약\s*(?:제조|거래)|인신\s*매매|자금\s*세탁\s*방법`, "불법 활동 지침"},
	{`아동\s*(?:포르노|착취|학대)`, "아동 착취 콘텐츠"},
}

// New compiles the blocked-pattern table into a ready-to-use Filter.
func New() *Filter {
	rules := make([]rule, 0, len(blockedPatterns))
	for _, bp := range blockedPatterns {
		rules = append(rules, rule{pattern: regexp.MustCompile(bp.pattern), reason: bp.reason})
	}
	return &Filter{rules: rules}
}

// Check returns (true, "") if text is safe, or (false, reason) for the
// first blocked pattern it matches.
func (f *Filter) Check(text string) (bool, string) {
	for _, r := range f.rules {
		if r.pattern.MatchString(text) {
			return false, r.reason
		}
	}
	return true, ""
}
