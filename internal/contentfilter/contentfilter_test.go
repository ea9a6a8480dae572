package contentfilter

import "testing"

func TestFilterCheckSafe(t *testing.T) {
	f := New()
	ok, reason := f.Check("Regulation should balance innovation with accountability.")
	if !ok {
		t.Fatalf("expected safe text to pass, got reason %q", reason)
	}
	if reason != "" {
		t.Fatalf("expected empty reason for safe text, got %q", reason)
	}
}

func TestFilterCheckBlockedEnglish(t *testing.T) {
	f := New()
	cases := []struct {
		text   string
		reason string
	}{
		{"They called for killing all members of the opposing side.", "Incitement to violence/genocide"},
		{"The forum promoted white power rhetoric.", "Hate speech (supremacism)"},
		{"The manifesto said to lynch protesters.", "Hate speech (violence against groups)"},
		{"He explained how to make a bomb in the comment.", "Illegal activity instructions"},
		{"The post described a mass shooting guide.", "Terrorism-related content"},
		{"It described how to launder money through shells.", "Illegal activity instructions"},
	}
	for _, c := range cases {
		ok, reason := f.Check(c.text)
		if ok {
			t.Errorf("expected text %q to be blocked", c.text)
			continue
		}
		if reason != c.reason {
			t.Errorf("text %q: expected reason %q, got %q", c.text, c.reason, reason)
		}
	}
}

func TestFilterCheckBlockedKorean(t *testing.T) {
	f := New()
	ok, reason := f.Check("이 댓글은 인종 청소를 선동했다.")
	if ok {
		t.Fatal("expected Korean hate-speech pattern to be blocked")
	}
	if reason != "혐오 발언 (인종/민족)" {
		t.Fatalf("unexpected reason: %q", reason)
	}
}

func TestFilterCheckFirstMatchWins(t *testing.T) {
	f := New()
	// Contains two blocked phrases; the first rule in the table should win.
	_, reason := f.Check("They wanted to kill all of them and also discussed how to make a bomb.")
	if reason != "Incitement to violence/genocide" {
		t.Fatalf("expected first matching rule's reason, got %q", reason)
	}
}

func TestFilterCheckCaseInsensitive(t *testing.T) {
	f := New()
	ok, _ := f.Check("KILL ALL of the opposition")
	if ok {
		t.Fatal("expected case-insensitive match to block uppercase text")
	}
}
