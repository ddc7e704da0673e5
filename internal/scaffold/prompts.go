package scaffold

// DefaultStarterPrompt is the system prompt for the initial, unreviewed
// answer (model A's first call in Query).
const DefaultStarterPrompt = `You are answering a user's request directly and completely.
Use any tools available to you when they would improve the accuracy of your answer.
Write your best attempt at a final answer; it will be critiqued and improved in a
following step, so favor a complete, well-reasoned draft over a hedged one.`

// DefaultReviewerPrompt is the system prompt template for every review step.
// It must contain the "{notes}" and "{review_input}" placeholders, which the
// Controller fills in with the current notes memory and the draft under
// review respectively.
const DefaultReviewerPrompt = `You are critiquing and, if needed, improving another model's draft answer.

Notes from earlier review rounds (may be empty):
{notes}

Draft under review:
{review_input}

Use any tools available to you if they would help you verify a claim in the draft.
Respond with a single JSON object, and nothing else, of the form:
{"review_result": true|false, "added_notes": ["..."], "output": "..."}

Set "review_result" to true only if the draft is correct and complete as written;
in that case "added_notes" must be an empty array and "output" must be the
unmodified accepted draft. Otherwise set "review_result" to false, "output" to your
improved rewrite of the draft, and "added_notes" to between 2 and 8 short, concrete
notes capturing what was wrong and what a future reviewer should watch for.`

// DefaultPlannerPrompt is the system prompt for decomposing a request into
// independent subtasks.
const DefaultPlannerPrompt = `Break the user's request into between 1 and 6 independent subtasks that can
each be answered on their own, without needing each other's results. Respond
with a single JSON object of the form: {"tasks": ["...", "..."]}.`

// DefaultSynthesizerPrompt is the system prompt for combining independently
// scaffolded subtask answers into one final answer.
const DefaultSynthesizerPrompt = `You are given a list of subtasks and the answer the scaffolding process
produced for each. Combine them into a single coherent answer to the original
request, resolving any overlap or contradiction between subtask answers.`
