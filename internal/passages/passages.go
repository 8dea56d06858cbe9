// Package passages holds the fixed text passages raced over at each
// difficulty level.
package passages

var texts = map[string]string{
	"easy":   "The cat sat on the mat. It was a sunny day and the birds were singing in the trees. Children played in the park while their parents watched from nearby benches.",
	"medium": "Technology has revolutionized the way we communicate with each other. Social media platforms allow us to connect instantly with people around the world, sharing our thoughts and experiences in real-time.",
	"hard":   "Quantum mechanics represents one of the most fascinating and counterintuitive branches of physics, challenging our fundamental understanding of reality through phenomena like superposition and entanglement.",
	"expert": "The implementation of sophisticated algorithms in machine learning requires careful consideration of computational complexity, optimization techniques, and the mathematical foundations underlying neural network architectures.",
}

// ForDifficulty returns the passage for the given difficulty, or ok=false
// when the difficulty is unknown.
func ForDifficulty(difficulty string) (string, bool) {
	text, ok := texts[difficulty]
	return text, ok
}
