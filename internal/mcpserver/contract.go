package mcpserver

// NoteFormatContract describes the canonical HTML note format that
// LLM consumers should follow when creating or updating notes.
const NoteFormatContract = `# Ansuz Note Format Contract

Every note stored in Ansuz is a self-contained HTML fragment.

## Structure

` + "```" + `html
<div data-schema-version="3">
<h1>Human-readable title</h1>
<p>Body text in plain HTML.</p>
</div>
` + "```" + `

## Rules

1. **The wrapper div is optional but recommended.** When present, its
   ` + "`" + `data-schema-version` + "`" + ` attribute records the document schema version.
   Omit it and the content is treated as a bare fragment.
2. **Supported block elements:** ` + "`" + `<h1>` + "`" + `..` + "`" + `<h6>` + "`" + `, ` + "`" + `<p>` + "`" + `, ` + "`" + `<blockquote>` + "`" + `,
   ` + "`" + `<pre>` + "`" + `, ` + "`" + `<ul>` + "`" + `/` + "`" + `<ol>` + "`" + ` with ` + "`" + `<li>` + "`" + `, ` + "`" + `<table>` + "`" + ` with ` + "`" + `<tr>` + "`" + `/` + "`" + `<td>` + "`" + `/` + "`" + `<th>` + "`" + `,
   ` + "`" + `<hr>` + "`" + `, and ` + "`" + `<img>` + "`" + `.
3. **Supported inline elements:** ` + "`" + `<strong>` + "`" + `/` + "`" + `<b>` + "`" + `, ` + "`" + `<em>` + "`" + `/` + "`" + `<i>` + "`" + `,
   ` + "`" + `<u>` + "`" + `, ` + "`" + `<s>` + "`" + `, ` + "`" + `<code>` + "`" + `, ` + "`" + `<sub>` + "`" + `, ` + "`" + `<sup>` + "`" + `, and ` + "`" + `<a href>` + "`" + `.
   Anything else is stripped on import.
4. **Citations** are ` + "`" + `<span class="citation" data-citation="...">` + "`" + ` elements whose
   ` + "`" + `data-citation` + "`" + ` attribute holds the JSON citation payload. Do not fabricate
   citation payloads; create plain text and let the host attach real records.
5. **Do not set ` + "`" + `data-node-id` + "`" + ` attributes.** Node identities are assigned and
   reconciled by the editor.
6. **File paths** end with ` + "`" + `.html` + "`" + ` and use forward slashes. File and directory
   names MUST use Latin characters; body content may use any language.
7. **Encoding** is UTF-8.

## Assets & Images

- Upload assets via the ` + "`" + `upload_asset` + "`" + ` tool. It returns an ` + "`" + `htmlImage` + "`" + ` field ready to paste into the note body.
- Assets are stored in the shared ` + "`" + `attachments/` + "`" + ` directory (flat, no sub-folders).
- Reference in notes using the absolute path: ` + "`" + `<img src="/attachments/filename.png" alt="description">` + "`" + `
- Supported formats: png, jpg, jpeg, gif, webp, svg.
- Do **not** use relative paths like ` + "`" + `./attachments/...` + "`" + `; always use ` + "`" + `/attachments/filename` + "`" + `.

## Example

` + "```" + `html
<div data-schema-version="3">
<h1>Weekly reading 2026-01-20</h1>
<p>Summary of <em>The Design of Everyday Things</em>.</p>
<img src="/attachments/norman-cover.jpg" alt="Book cover">
<h2>Key points</h2>
<ul>
<li><p>Affordances guide use without instruction.</p></li>
<li><p>Error messages should help recovery, not assign blame.</p></li>
</ul>
</div>
` + "```" + `
`
