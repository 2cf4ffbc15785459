// Package textutil derives filesystem-safe names from user-facing text.
//
// Dataset labels are built from the dataset folder name: diacritics are
// folded to ASCII, unsafe characters removed, and runs of separators
// collapsed, so a folder called "Étang Nord (2024)" exports as
// "Etang-Nord-2024.csv".
package textutil
