package core

import "testing"

func TestSeverityOfOrdering(t *testing.T) {
	order := []Verdict{VerdictAC, VerdictWA, VerdictRE, VerdictMLE, VerdictTLE}
	for i := 1; i < len(order); i++ {
		if severityOf(order[i]) <= severityOf(order[i-1]) {
			t.Fatalf("expected severity(%s) > severity(%s)", order[i], order[i-1])
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		oomKilled bool
		exitCode  int
		actual    string
		expected  string
		want      Verdict
	}{
		{"oom dominates nonzero exit", true, 1, "", "x", VerdictMLE},
		{"oom dominates zero exit", true, 0, "x", "x", VerdictMLE},
		{"nonzero exit is RE", false, 1, "x", "x", VerdictRE},
		{"exact match is AC", false, 0, "hello\n", "hello", VerdictAC},
		{"strip whitespace both sides", false, 0, "  hello  \n", "hello", VerdictAC},
		{"mismatch is WA", false, 0, "hello", "world", VerdictWA},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.oomKilled, tc.exitCode, tc.actual, tc.expected)
			if got != tc.want {
				t.Fatalf("classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestShellQuote(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"hello", "'hello'"},
		{"it's", `'it'\''s'`},
		{"a b\nc", "'a b\nc'"},
	}
	for _, tc := range cases {
		if got := shellQuote(tc.in); got != tc.want {
			t.Fatalf("shellQuote(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRunEmptyTestCasesIsAC(t *testing.T) {
	r := &DockerSandboxRunner{registry: mustRegistry(t)}
	result := r.Run(nil, "print(1)", "python", nil, 2, 256)
	if result.Overall != VerdictAC {
		t.Fatalf("got %s, want AC for empty test_cases", result.Overall)
	}
	if result.MaxTime != 0 {
		t.Fatalf("got max_time %v, want 0", result.MaxTime)
	}
}

func TestRunUnknownLanguageIsRE(t *testing.T) {
	r := &DockerSandboxRunner{registry: mustRegistry(t)}
	result := r.Run(nil, "code", "cobol", []TestCase{{Input: "1", ExpectedOutput: "1"}}, 2, 256)
	if result.Overall != VerdictRE {
		t.Fatalf("got %s, want RE for unsupported language", result.Overall)
	}
}

func mustRegistry(t *testing.T) *LanguageRegistry {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/languages.yaml"
	writeTestLanguagesFile(t, path)
	reg, err := LoadLanguages(path)
	if err != nil {
		t.Fatalf("LoadLanguages: %v", err)
	}
	return reg
}
