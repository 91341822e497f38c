package mcpserver

// MediaConventions describes how notes reference media and how the media
// folder is laid out, for LLM consumers that create notes or add files.
const MediaConventions = `# Media Folder Conventions

## Layout

- The media folder is **flat**. Subfolders are not supported and are reported
  as a warning by every check.
- File names starting with ` + "`_`" + ` are reserved for templates and scripts.
  They are never reported as unused, and references to them are never
  reported as missing.
- File names must not contain any of ` + "`" + `[ ] < > : " / ? * ^ \ |` + "`" + `
  or control characters (NUL, CR, LF). Such files are skipped with a warning.
- File names are stored in Unicode **NFC**. A check renames decomposed names
  (or deletes them when the NFC name already exists) and then starts over.

## References

Notes reference media in their HTML fields:

- ` + "`" + `<img src="file.png">` + "`" + ` (quoted or unquoted)
- ` + "`" + `[sound:file.mp3]` + "`" + `

References starting with ` + "`http://`, `https://` or `ftp://`" + ` are remote
and are not compared with the folder.

## LaTeX

Fields may contain ` + "`[latex]...[/latex]`, `[$]...[/$]` and `[$$]...[/$$]`" + `.
Each is compiled once into ` + "`latex-<sha1>.png`" + ` (or ` + "`.svg`" + ` when the
note type prefers SVG) and cached in the media folder. Notes whose LaTeX
fails to build are tagged ` + "`LaTeXError`" + `.

## Cloze notes

For cloze note types every deletion index (` + "`{{c1::...}}`, `{{c2::...}}`" + `)
is rendered separately, so media inside any deletion counts as referenced.
`
