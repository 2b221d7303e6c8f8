// Package duplicates screens new feedback for restatements of existing
// feedback.
//
// Screening runs in two stages. The Finder is a cheap lexical pre-filter: it
// narrows the stored feedback down to at most MaxCandidates records sharing
// keywords with the submission. Only when it returns candidates is the
// Classifier consulted; it asks a language model whether the submission has
// the same intent as any candidate.
//
// A Classifier failure is reported as a *ClassifierError. Callers decide how
// to degrade; the feedback service treats it as "not a duplicate".
package duplicates
