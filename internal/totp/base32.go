package totp

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var base32Values = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(base32Alphabet); i++ {
		c := base32Alphabet[i]
		t[c] = int8(i)
		if c >= 'A' && c <= 'Z' {
			t[c+'a'-'A'] = int8(i)
		}
	}
	return t
}()

// DecodeSecret decodes an RFC 4648 base32 secret the way authenticator apps
// do in practice: case-insensitive, '=' padding ignored, and any character
// outside the alphabet (spaces, dashes, typos) skipped. Trailing bits that do
// not fill a whole byte are dropped. The result may be empty.
func DecodeSecret(secret string) []byte {
	out := make([]byte, 0, len(secret)*5/8)

	var buffer uint32
	bits := 0
	for i := 0; i < len(secret); i++ {
		v := base32Values[secret[i]]
		if v < 0 {
			continue
		}
		buffer = buffer<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buffer>>uint(bits)))
		}
	}
	return out
}
