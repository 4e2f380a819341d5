package service

import "strings"

const commandPlaceholder = "{{command}}"

const extractionPromptTemplate = `
Преобразуй следующую команду на русском языке в структурированный JSON в указанном формате. Используй **только** информацию из команды. Не добавляй никаких дополнительных данных или вымышленных элементов.

Команда: "{{command}}"

Требования:

1. Разбери команду на отдельные действия, если их несколько.
2. Для каждой команды верни объект в следующем формате:

{
  "manufacturer": "<производитель>",
  "part": "<деталь>",
  "model": "<модель или кузов>",
  "quantity": <количество>,
  "action": "<add или remove>"
}

3. Используй русский язык для всех полей и значений.
4. **Не придумывай данные**, отсутствующие в команде.
5. Если количество не указано, используй 1. Если модель не указана, используй пустую строку.
6. Ответ должен быть строго в формате JSON, без дополнительного текста или комментариев.

Пример ответа:

{
  "changes": [
    {
      "manufacturer": "BMW",
      "part": "заднее крыло",
      "model": "",
      "quantity": 1,
      "action": "add"
    }
  ]
}
`

// BuildPrompt renders the extraction instructions for command. It has no side
// effects: the same command always yields the same prompt.
func BuildPrompt(command string) string {
	return strings.Replace(extractionPromptTemplate, commandPlaceholder, command, 1)
}
