package ai

// ExtractionPrompt asks the model for actor mentions in a news document.
// The document text is substituted for %s.
const ExtractionPrompt = `
# Task Context
You are a careful assistant that finds named actors (people, companies, countries, organizations, governments, structures, notable events) mentioned in a news document.

# Background Data
%s

# Detailed Task Description & Rules
- List every distinct real-world actor the document mentions.
- Use the name exactly as it appears in the text for "original_text" and the most complete form used in the document for "name".
- Classify each actor as one of: person, company, country, organization, government, structure, event.
- Assign a confidence between 0.0 and 1.0 reflecting how certain the mention is an actor reference and not a common noun.
- Report the language of the mention as a two-letter code when it is not English.
- Do not invent actors that are only implied, and do not include generic terms like "the government" without a concrete referent.

# Output Formatting
Return only a JSON object with this structure:
{
  "mentions": [
    {
      "name": "<most complete name>",
      "type": "<person|company|country|organization|government|structure|event>",
      "confidence": 0.0,
      "original_text": "<name as written>",
      "language": "<two-letter code, optional>"
    }
  ]
}
`
