package mcpserver

// SnapshotFormatContract describes the canonical project snapshot format
// that LLM consumers should follow when creating or updating projects.
const SnapshotFormatContract = `# Raido Project Snapshot Contract

Every project snapshot stored in Raido MUST follow this structure.

## Structure

` + "```" + `json
{
  "title": "Human-readable project title",
  "targets": {
    "stage": { ...target definition... },
    "sprite1": { ...target definition... }
  },
  "assets": [
    {"id": "<md5-of-content>", "type": "costume", "dataFormat": "png"}
  ],
  "meta": {"agent": "name of the producing tool"}
}
` + "```" + `

## Rules

1. **The snapshot is a single JSON object.** Keys are serialized in a
   stable order so identical projects produce identical bytes.
2. **Targets** are keyed by name; each value is an opaque JSON object
   describing one stage or sprite.
3. **Asset references** use the md5ext form: ` + "`" + `<id>.<dataFormat>` + "`" + ` where
   ` + "`" + `id` + "`" + ` is the lowercase hex MD5 of the asset bytes. A snapshot must not
   reference an asset that has not been uploaded.
4. **Data formats**: costumes use png, svg or jpg; sounds use wav, mp3 or ogg.
5. **Encoding** is UTF-8 without a byte-order mark.

## Assets

- Upload assets via the ` + "`" + `upload_asset` + "`" + ` tool before referencing them in a
  snapshot. It returns the md5ext reference ready to paste into the
  ` + "`" + `assets` + "`" + ` array.
- The server verifies the id against the uploaded bytes; a mismatched id
  is rejected with code ` + "`" + `ChecksumMismatch` + "`" + `.

## Example

` + "```" + `json
{
  "title": "Bouncing cat",
  "targets": {
    "stage": {"backdrop": "d41d8cd98f00b204e9800998ecf8427e.png"},
    "cat": {"costume": "0b3a9a65f7a5a1f4a43f0e9a8a1d2c3e.svg", "scripts": []}
  },
  "assets": [
    {"id": "d41d8cd98f00b204e9800998ecf8427e", "type": "backdrop", "dataFormat": "png"},
    {"id": "0b3a9a65f7a5a1f4a43f0e9a8a1d2c3e", "type": "costume", "dataFormat": "svg"}
  ],
  "meta": {"agent": "raido-mcp"}
}
` + "```" + `
`
