package scoring

const semanticSystemPrompt = "Jesteś ekspertem w dopasowywaniu wniosków do programów dofinansowania. Oceniasz dopasowanie w skali 0-1, gdzie 1 oznacza idealne dopasowanie."

const semanticPrompt = `Wniosek: "%s"

Program dofinansowania: "%s"

Oceń dopasowanie w skali 0-1 (tylko liczba, bez dodatkowych komentarzy):`

const justificationSystemPrompt = "Jesteś ekspertem w dopasowywaniu wniosków do programów dofinansowania. Napisz krótkie, profesjonalne uzasadnienie (2-3 zdania) dlaczego ten program jest odpowiedni dla wniosku."

const justificationPrompt = `Wniosek: "%s"
Opis: "%s"

Program: "%s"
Opis programu: "%s"

Powody dopasowania: %s
Score: %s

Napisz uzasadnienie po polsku:`
