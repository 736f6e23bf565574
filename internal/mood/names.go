package mood

// Name returns a short descriptive label for a vector.
// Uses a 2x2 energy/valence quadrant system with acousticness modifier.
//
// Quadrants:
//   - High Energy + High Valence = "Upbeat Party"
//   - High Energy + Low Valence  = "Intense & Dark"
//   - Low Energy  + High Valence = "Chill & Happy"
//   - Low Energy  + Low Valence  = "Reflective & Melancholy"
//
// Acousticness modifier: if > 0.6, appends "(Acoustic)" to the name.
func Name(v Vector) string {
	highEnergy := v[Energy] > 0.6
	highValence := v[Valence] > 0.5

	var baseName string
	switch {
	case highEnergy && highValence:
		baseName = "Upbeat Party"
	case highEnergy && !highValence:
		baseName = "Intense & Dark"
	case !highEnergy && highValence:
		baseName = "Chill & Happy"
	default:
		baseName = "Reflective & Melancholy"
	}

	if v[Acousticness] > 0.6 {
		return baseName + " (Acoustic)"
	}
	return baseName
}

// Category is a mood classification for display purposes.
type Category struct {
	Name        string  `json:"name"`
	Energy      float64 `json:"energy"`
	Valence     float64 `json:"valence"`
	Description string  `json:"description"`
}

// Categorize returns a detailed mood category for a vector.
func Categorize(v Vector) Category {
	energy := v[Energy]
	valence := v[Valence]

	var description string
	switch {
	case energy > 0.6 && valence > 0.5:
		description = "High-energy, positive vibes - perfect for dancing and celebrations"
	case energy > 0.6 && valence <= 0.5:
		description = "Intense, driving energy with darker emotional tones"
	case energy <= 0.6 && valence > 0.5:
		description = "Relaxed and uplifting - great for unwinding"
	default:
		description = "Contemplative and introspective - ideal for quiet moments"
	}

	return Category{
		Name:        Name(v),
		Energy:      energy,
		Valence:     valence,
		Description: description,
	}
}
