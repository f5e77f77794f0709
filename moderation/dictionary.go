package moderation

import "embed"

// Dictionaries holds the built-in word lists, one file per language under censored/.
//
//go:embed censored/*.txt
var Dictionaries embed.FS

const DictionaryDir = "censored"
