package prompt

// MakeEstimator returns an approximate token counter: ceil(len(utf8 bytes) / bytesPerToken).
// bytesPerToken <= 0 defaults to 4.
func MakeEstimator(bytesPerToken int) func(string) int {
	bpt := bytesPerToken
	if bpt <= 0 {
		bpt = 4
	}
	return func(s string) int {
		n := len(s)
		if n == 0 {
			return 0
		}
		return (n + bpt - 1) / bpt
	}
}

// ContextBudget returns the byte budget for assembled context so that template overhead,
// question and context together stay within maxInputTokens. maxChars caps the result when
// positive; maxInputTokens <= 0 disables the token bound, and a result of 0 means unlimited.
// A negative result means template and question alone use up the budget.
func ContextBudget(t *Template, question string, maxInputTokens, bytesPerToken, maxChars int) int {
	if maxInputTokens <= 0 {
		return maxChars
	}
	if bytesPerToken <= 0 {
		bytesPerToken = 4
	}
	est := MakeEstimator(bytesPerToken)
	remaining := maxInputTokens - est(t.Overhead()) - est(question)
	if remaining <= 0 {
		return -1
	}
	budget := remaining * bytesPerToken
	if maxChars > 0 && maxChars < budget {
		return maxChars
	}
	return budget
}

// Fits reports whether the template rendered with question and no context stays within
// maxInputTokens. maxInputTokens <= 0 means no bound.
func Fits(t *Template, question string, maxInputTokens, bytesPerToken int) bool {
	if maxInputTokens <= 0 {
		return true
	}
	est := MakeEstimator(bytesPerToken)
	return est(t.Overhead())+est(question) <= maxInputTokens
}
