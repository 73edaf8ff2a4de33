package tools

import "strings"

// renderBoard draws the piece-placement field of a FEN string as an ASCII
// grid with file and rank labels.
func renderBoard(fen string) string {
	placement := fen
	if idx := strings.IndexByte(fen, ' '); idx >= 0 {
		placement = fen[:idx]
	}

	var b strings.Builder
	b.WriteString("  a b c d e f g h\n")
	ranks := strings.Split(placement, "/")
	for i, rank := range ranks {
		label := byte('8' - i)
		b.WriteByte(label)
		b.WriteByte(' ')
		for _, c := range rank {
			if c >= '1' && c <= '8' {
				for n := 0; n < int(c-'0'); n++ {
					b.WriteString(". ")
				}
				continue
			}
			b.WriteRune(c)
			b.WriteByte(' ')
		}
		b.WriteByte(label)
		b.WriteByte('\n')
	}
	b.WriteString("  a b c d e f g h")
	return b.String()
}
