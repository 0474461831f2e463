package core

// MutateToken change exactly one character of a token.
// The first digit d becomes (d+1)%10, otherwise the first ASCII letter
// moves to its successor with z->a and Z->A. Tokens without digits and
// letters cannot be mutated.
func MutateToken(token string) (string, bool) {
	b := []byte(token)
	for i, c := range b {
		if c >= '0' && c <= '9' {
			b[i] = '0' + (c-'0'+1)%10
			return string(b), true
		}
	}
	for i, c := range b {
		switch {
		case c == 'z':
			b[i] = 'a'
		case c == 'Z':
			b[i] = 'A'
		case (c >= 'a' && c < 'z') || (c >= 'A' && c < 'Z'):
			b[i] = c + 1
		default:
			continue
		}
		return string(b), true
	}
	return token, false
}
