package mcpserver

// InfoboxFormatURI is the resource URI of InfoboxFormatContract.
const InfoboxFormatURI = "infobox://format"

// InfoboxFormatContract describes the infobox block format that LLM
// consumers should follow when adding structured summaries to notes.
const InfoboxFormatContract = `# Infobox Format Contract

An infobox is a fenced code block with the info string ` + "`infobox`" + ` placed
anywhere in a note body. Its content is a TOML document (or a JSON object when
the first non-blank character is ` + "`{`" + `). It renders as a side panel with an
optional image, a title, and one row per remaining key, in source order.

## Structure

` + "```" + `markdown
` + "```" + `infobox
image = "/attachments/star-wars-poster.jpg"   # OPTIONAL – reserved, string
title = "Star Wars"                           # OPTIONAL – reserved, string
director = "[[George Lucas]]"                 # text with inline wikilinks
release_date = "25 May 1977"                  # label becomes "Release Date"
starring = ["Mark Hamill", "Harrison Ford"]   # list of strings
website = { link = "https://starwars.com", content = "Official site" }
studio = { link = "[[Lucasfilm|Lucasfilm Ltd.]]" }
` + "```" + `
` + "```" + `

## Rules

1. **Reserved keys.** ` + "`image`" + ` and ` + "`title`" + ` must be strings. They are not
   rendered as rows.
2. **Missing title.** When ` + "`title`" + ` is absent and the box has other keys, the
   note's file name (without extension) is used.
3. **Labels.** Row labels are derived from keys: underscores become spaces and
   every word is capitalised. Use snake_case keys.
4. **Values.** A row value is one of:
   - a string; every ` + "`[[target]]`" + ` or ` + "`[[target|label]]`" + ` inside becomes a link;
   - a list of strings, rendered one per line (links are not resolved in lists);
   - a table with a ` + "`link`" + ` string and an optional ` + "`content`" + ` string used as the
     display text.
   Any other shape (numbers, booleans, dates, nested tables, mixed lists) is
   skipped. Quote numbers and dates.
5. **Links.** ` + "`[[...]]`" + ` targets resolve against the vault like note wikilinks
   (file stem, relative ` + "`./`" + ` and ` + "`../`" + ` paths, ` + "`#heading`" + ` subpaths). Anything not in
   double brackets is an external address and is used verbatim.
6. **Images.** Upload images with the ` + "`upload_infobox_image`" + ` tool and paste the
   returned ` + "`infoboxImage`" + ` line.
7. **Errors.** A block that is not valid TOML/JSON is left as a plain code block.
   Use ` + "`render_infobox`" + ` to check a block before saving it.

## JSON form

` + "```" + `markdown
` + "```" + `infobox
{"title": "Alien", "director": "[[Ridley Scott]]", "genres": ["Horror", "Sci-fi"]}
` + "```" + `
` + "```" + `
`
