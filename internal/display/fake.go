package display

// FakeDisplay records shown text for test assertions.
type FakeDisplay struct {
	// Texts contains every string passed to Show, in order.
	Texts []string

	// Points contains the position of every Show call.
	Points []Point

	// ShowError, if set, is returned by Show after recording.
	ShowError error

	// OnShow, if set, is called synchronously after recording.
	OnShow func(text string)
}

// Show records text.
func (f *FakeDisplay) Show(text string, at Point) error {
	f.Texts = append(f.Texts, text)
	f.Points = append(f.Points, at)
	if f.OnShow != nil {
		f.OnShow(text)
	}
	return f.ShowError
}

// Last returns the most recent text, or "" if nothing was shown.
func (f *FakeDisplay) Last() string {
	if len(f.Texts) == 0 {
		return ""
	}
	return f.Texts[len(f.Texts)-1]
}
