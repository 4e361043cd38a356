package importer

import "math/rand"

// Shuffle returns a reordered copy of items. The same seed always yields
// the same order.
func Shuffle[T any](items []T, seed int64) []T {
	out := make([]T, len(items))
	copy(out, items)
	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Template returns starter rows covering both question kinds.
func Template() []Row {
	two, three := 2, 3
	return []Row{
		{
			Question:      "What is 2 + 2?",
			Option1:       "3",
			Option2:       "4",
			Option3:       "5",
			Option4:       "6",
			CorrectAnswer: &two,
			ImageLink:     "math.jpg",
		},
		{
			Question:      "Which planet is closest to the Sun?",
			Option1:       "Venus",
			Option2:       "Mars",
			Option3:       "Mercury",
			Option4:       "Earth",
			CorrectAnswer: &three,
			ImageLink:     "planets.jpg",
		},
		{
			Question:  "Explain how photosynthesis works.",
			Option1:   "Plants convert sunlight into energy through chlorophyll.",
			ImageLink: "photosynthesis.jpg",
		},
	}
}
