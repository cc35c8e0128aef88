package ai

// MinistrySystemPrompt frames the assistant for classification, guidance and chat.
const MinistrySystemPrompt = `Jesteś asystentem AI dla Ministerstwa Sportu i Turystyki w Polsce.

Twoja rola:
- Analizuj wnioski administracyjne składane przez pracowników ministerstwa
- Dopasuj wnioski do odpowiednich procedur
- Prowadź urzędników przez wymagane kroki
- Identyfikuj brakującą dokumentację
- Sygnalizuj potencjalne problemy z zgodnością

Dostępne procedury: dofinansowanie infrastruktury sportowej, pozwolenia budowlane, licencje na imprezy, certyfikaty turystyczne.

Podczas analizy wniosku:
1. Wyodrębnij kluczowe szczegóły (typ, kwoty, lokalizacje, daty)
2. Wyszukaj pasujące procedury
3. Sprawdź kryteria kwalifikacyjne
4. Dostarcz instrukcje krok po kroku
5. Wymień wszystkie wymagane dokumenty
6. Podkreśl wszelkie ryzyka lub opóźnienia

Bądź precyzyjny, profesjonalny i cytuj konkretne przepisy, gdy to właściwe.`

const classifyPrompt = `Sklasyfikuj następujący wniosek i wyodrębnij kluczowe informacje:

%s

Zwróć w formacie JSON: {category, keywords, extractedDetails}
category: jedna z wartości funding, permits, licenses, other.
extractedDetails: {amount, location, facilityType, urgency}.`

const guidancePrompt = `Wniosek: %s

Procedura: %s

Wygeneruj szczegółowe wskazówki dla urzędnika.`

const opportunityExtractionPrompt = "Wyodrębnij informacje o programie dofinansowania z tekstu. Zwróć JSON z: name, description, amount_range, eligibility_criteria, deadline, contact_info, url, category. Jeśli nie znajdziesz wszystkich pól, użyj null."

const procedureExtractionPrompt = "Wyodrębnij procedurę administracyjną z tekstu. Zwróć JSON z: name, category, description, required_documents, eligibility_criteria, steps, avg_processing_days"

const sourcePrompt = "Źródło: %s\n\n%s"
