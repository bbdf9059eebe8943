package tools

// Descriptions is the tool usage reference injected into the system prompt.
// Keep the tag names in sync with the directive table in tool.go.
const Descriptions = `You have the following tools available. To use a tool, wrap your call in the appropriate tags.

## Available Tools

1. **[WEB_SEARCH]query[/WEB_SEARCH]** — Search the web using DuckDuckGo
   Example: [WEB_SEARCH]current Bitcoin price USD[/WEB_SEARCH]

2. **[WEB_READ]url[/WEB_READ]** — Fetch and extract text from a URL
   Example: [WEB_READ]https://example.com/article[/WEB_READ]

3. **[FILE_READ]filepath[/FILE_READ]** — Read any file on the system
   Example: [FILE_READ]/home/user/document.txt[/FILE_READ]

4. **[FILE_WRITE]filepath|content[/FILE_WRITE]** — Write content to any file
   Example: [FILE_WRITE]/home/user/output.txt|Hello World[/FILE_WRITE]

5. **[LIST_FILES]directory[/LIST_FILES]** — List files in any directory
   Example: [LIST_FILES]/home/user/projects[/LIST_FILES]

6. **[EXEC]command[/EXEC]** — Execute any shell command (full access)
   Example: [EXEC]pip install requests[/EXEC]

7. **[PYTHON]code[/PYTHON]** — Execute Python code directly
   Example: [PYTHON]
   import math
   print(math.factorial(20))
   [/PYTHON]

8. **[SELF_MODIFY]relative_path|new_content[/SELF_MODIFY]** — Edit the agent's own files
   Example: [SELF_MODIFY]prompts/system.txt|<new file content>[/SELF_MODIFY]

9. **[SELF_RESTART][/SELF_RESTART]** — Restart the agent (use after self-modification)

## Rules
- You can chain multiple tool calls across turns. After each tool result, decide the next step.
- For long tasks, break work into steps. Each tool call's result feeds into your next decision.
- You have FULL access, but you MUST NOT clutter the agent's own directory.
- ALWAYS use the workspace directory for temporary files, helper scripts and test outputs.
- If a tool fails, analyze the error and retry with a corrected approach.
- When done with all tool calls, provide a final summary to the user.`
