package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"google.golang.org/api/idtoken"

	"mixer/graph"
	"mixer/match"
	"mixer/milp"
	"mixer/solver"
)

//go:embed schema.sql
var schema string

func main() {
	for _, key := range []string{"PGCONN", "CLIENT_ID", "CLIENT_SECRET", "ADMINS"} {
		if os.Getenv(key) == "" {
			log.Fatalf("%s environment variable is required", key)
		}
	}

	db, err := sql.Open("postgres", os.Getenv("PGCONN"))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	log.Println("connected to database")

	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	http.HandleFunc("POST /auth/google/callback", handleGoogleCallback)
	http.HandleFunc("GET /api/admin/check", handleAdminCheck)
	http.HandleFunc("GET /api/events", handleListEvents(db))
	http.HandleFunc("POST /api/events", handleCreateEvent(db))
	http.HandleFunc("DELETE /api/events/{eventID}", handleDeleteEvent(db))
	http.HandleFunc("PATCH /api/events/{eventID}", handleUpdateEvent(db))
	http.HandleFunc("POST /api/events/{eventID}/admins", handleAddEventAdmin(db))
	http.HandleFunc("DELETE /api/events/{eventID}/admins/{adminID}", handleRemoveEventAdmin(db))
	http.HandleFunc("GET /api/events/{eventID}/me", handleEventMe(db))
	http.HandleFunc("GET /api/events/{eventID}/participants", handleListParticipants(db))
	http.HandleFunc("POST /api/events/{eventID}/participants", handleCreateParticipant(db))
	http.HandleFunc("DELETE /api/events/{eventID}/participants/{participantID}", handleDeleteParticipant(db))
	http.HandleFunc("GET /api/events/{eventID}/preferences", handleListPreferences(db))
	http.HandleFunc("POST /api/events/{eventID}/preferences", handleCreatePreference(db))
	http.HandleFunc("DELETE /api/events/{eventID}/preferences/{preferenceID}", handleDeletePreference(db))
	http.HandleFunc("POST /api/events/{eventID}/solve", handleSolve(db))
	http.HandleFunc("GET /api/events/{eventID}/rounds", handleListRounds(db))
	http.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "db unhealthy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	log.Println("listening on :8080")
	log.Fatal(http.ListenAndServe(":8080", nil))
}

func handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	credential := r.FormValue("credential")
	if credential == "" {
		http.Error(w, "missing credential", http.StatusBadRequest)
		return
	}

	payload, err := idtoken.Validate(context.Background(), credential, os.Getenv("CLIENT_ID"))
	if err != nil {
		log.Println("failed to validate token:", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	email := payload.Claims["email"].(string)

	profile := map[string]any{
		"email":   email,
		"name":    payload.Claims["name"],
		"picture": payload.Claims["picture"],
		"token":   signEmail(email),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

func signEmail(email string) string {
	h := hmac.New(sha256.New, []byte(os.Getenv("CLIENT_SECRET")))
	h.Write([]byte(email))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(email)) + "." + sig
}

func authorize(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	emailBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	email := string(emailBytes)
	if !hmac.Equal([]byte(signEmail(email)), []byte(token)) {
		return "", false
	}
	return email, true
}

func isAdmin(email string) bool {
	return slices.ContainsFunc(strings.Split(os.Getenv("ADMINS"), ","), func(a string) bool {
		return strings.TrimSpace(a) == email
	})
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	if !isAdmin(email) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return email, true
}

func isEventAdmin(db *sql.DB, email string, eventID int64) bool {
	var exists bool
	db.QueryRow("SELECT EXISTS(SELECT 1 FROM event_admins WHERE event_id = $1 AND email = $2)", eventID, email).Scan(&exists)
	return exists
}

func requireEventAdmin(db *sql.DB, w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", 0, false
	}
	eventID, err := strconv.ParseInt(r.PathValue("eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event ID", http.StatusBadRequest)
		return "", 0, false
	}
	if !isAdmin(email) && !isEventAdmin(db, email, eventID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", 0, false
	}
	return email, eventID, true
}

// eventRole resolves what a caller may do within an event: site and
// event admins get "admin"; anyone whose email matches a participant
// row gets "guest" along with their own participant ids.
func eventRole(db *sql.DB, email string, eventID int64) (string, []int64) {
	if isAdmin(email) || isEventAdmin(db, email, eventID) {
		return "admin", nil
	}
	rows, err := db.Query("SELECT id FROM participants WHERE event_id = $1 AND email = $2", eventID, email)
	if err != nil {
		return "", nil
	}
	defer rows.Close()

	var participantIDs []int64
	for rows.Next() {
		var id int64
		rows.Scan(&id)
		participantIDs = append(participantIDs, id)
	}
	if len(participantIDs) > 0 {
		return "guest", participantIDs
	}
	return "", nil
}

func requireEventMember(db *sql.DB, w http.ResponseWriter, r *http.Request) (string, int64, string, []int64, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", 0, "", nil, false
	}
	eventID, err := strconv.ParseInt(r.PathValue("eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event ID", http.StatusBadRequest)
		return "", 0, "", nil, false
	}
	role, participantIDs := eventRole(db, email, eventID)
	if role == "" {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", 0, "", nil, false
	}
	return email, eventID, role, participantIDs, true
}

func handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"admin": isAdmin(email)})
}

type eventSettings struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	GroupSize     int     `json:"group_size"`
	MutualWeight  float64 `json:"mutual_weight"`
	PenaltyWeight float64 `json:"penalty_weight"`
	Balanced      bool    `json:"balanced"`
	Pairing       bool    `json:"pairing"`
	Weighted      bool    `json:"weighted"`
}

func loadEvent(db *sql.DB, eventID int64) (eventSettings, error) {
	var ev eventSettings
	err := db.QueryRow(`
		SELECT id, name, group_size, mutual_weight, penalty_weight, balanced, pairing, weighted
		FROM events WHERE id = $1`, eventID).
		Scan(&ev.ID, &ev.Name, &ev.GroupSize, &ev.MutualWeight, &ev.PenaltyWeight, &ev.Balanced, &ev.Pairing, &ev.Weighted)
	return ev, err
}

func handleListEvents(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		rows, err := db.Query(`
			SELECT e.id, e.name, e.group_size, e.mutual_weight, e.penalty_weight, e.balanced, e.pairing, e.weighted, COALESCE(
				json_agg(json_build_object('id', ea.id, 'email', ea.email)) FILTER (WHERE ea.id IS NOT NULL),
				'[]'
			)
			FROM events e
			LEFT JOIN event_admins ea ON ea.event_id = e.id
			GROUP BY e.id
			ORDER BY e.id`)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type eventAdmin struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		}
		type event struct {
			eventSettings
			Admins []eventAdmin `json:"admins"`
		}

		var events []event
		for rows.Next() {
			var e event
			var adminsJSON []byte
			if err := rows.Scan(&e.ID, &e.Name, &e.GroupSize, &e.MutualWeight, &e.PenaltyWeight, &e.Balanced, &e.Pairing, &e.Weighted, &adminsJSON); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			json.Unmarshal(adminsJSON, &e.Admins)
			events = append(events, e)
		}
		if events == nil {
			events = []event{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(events)
	}
}

func handleCreateEvent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		var id int64
		err := db.QueryRow("INSERT INTO events (name) VALUES ($1) RETURNING id", body.Name).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id, "name": body.Name})
	}
}

func handleDeleteEvent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		eventID, err := strconv.ParseInt(r.PathValue("eventID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid event ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec("DELETE FROM events WHERE id = $1", eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUpdateEvent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}
		var body struct {
			GroupSize     *int     `json:"group_size"`
			MutualWeight  *float64 `json:"mutual_weight"`
			PenaltyWeight *float64 `json:"penalty_weight"`
			Balanced      *bool    `json:"balanced"`
			Pairing       *bool    `json:"pairing"`
			Weighted      *bool    `json:"weighted"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.GroupSize != nil && *body.GroupSize < 2 {
			http.Error(w, "group_size must be at least 2", http.StatusBadRequest)
			return
		}
		set := func(column string, value any) bool {
			if _, err := db.Exec("UPDATE events SET "+column+" = $1 WHERE id = $2", value, eventID); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return false
			}
			return true
		}
		if body.GroupSize != nil && !set("group_size", *body.GroupSize) {
			return
		}
		if body.MutualWeight != nil && !set("mutual_weight", *body.MutualWeight) {
			return
		}
		if body.PenaltyWeight != nil && !set("penalty_weight", *body.PenaltyWeight) {
			return
		}
		if body.Balanced != nil && !set("balanced", *body.Balanced) {
			return
		}
		if body.Pairing != nil && !set("pairing", *body.Pairing) {
			return
		}
		if body.Weighted != nil && !set("weighted", *body.Weighted) {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAddEventAdmin(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		eventID, err := strconv.ParseInt(r.PathValue("eventID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid event ID", http.StatusBadRequest)
			return
		}
		var body struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
			http.Error(w, "email is required", http.StatusBadRequest)
			return
		}
		var id int64
		err = db.QueryRow("INSERT INTO event_admins (event_id, email) VALUES ($1, $2) RETURNING id", eventID, body.Email).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id, "email": body.Email})
	}
}

func handleRemoveEventAdmin(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		adminID, err := strconv.ParseInt(r.PathValue("adminID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid admin ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec("DELETE FROM event_admins WHERE id = $1", adminID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "event admin not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleEventMe(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, role, participantIDs, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		type participantInfo struct {
			ID       int64  `json:"id"`
			Name     string `json:"name"`
			Category string `json:"category"`
			Ordinal  int    `json:"ordinal"`
		}
		participants := []participantInfo{}
		for _, pid := range participantIDs {
			var p participantInfo
			if err := db.QueryRow("SELECT id, name, category, ordinal FROM participants WHERE id = $1 AND event_id = $2", pid, eventID).
				Scan(&p.ID, &p.Name, &p.Category, &p.Ordinal); err == nil {
				participants = append(participants, p)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"role": role, "participants": participants})
	}
}

func handleListParticipants(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, role, _, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		// Guests see the roster but not other guests' emails.
		query := "SELECT id, name, category, ordinal, '' FROM participants WHERE event_id = $1 ORDER BY category, ordinal"
		if role == "admin" {
			query = "SELECT id, name, category, ordinal, email FROM participants WHERE event_id = $1 ORDER BY category, ordinal"
		}
		rows, err := db.Query(query, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type participant struct {
			ID       int64  `json:"id"`
			Name     string `json:"name"`
			Category string `json:"category"`
			Ordinal  int    `json:"ordinal"`
			Email    string `json:"email,omitempty"`
		}
		var participants []participant
		for rows.Next() {
			var p participant
			if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Ordinal, &p.Email); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			participants = append(participants, p)
		}
		if participants == nil {
			participants = []participant{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(participants)
	}
}

func handleCreateParticipant(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}
		var body struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Category string `json:"category"`
			Ordinal  int    `json:"ordinal"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" || body.Email == "" {
			http.Error(w, "name and email are required", http.StatusBadRequest)
			return
		}
		if body.Category != string(match.CategoryA) && body.Category != string(match.CategoryB) {
			http.Error(w, "category must be A or B", http.StatusBadRequest)
			return
		}
		if body.Ordinal < 1 {
			http.Error(w, "ordinal must be at least 1", http.StatusBadRequest)
			return
		}
		var id int64
		err := db.QueryRow(`
			INSERT INTO participants (event_id, category, ordinal, name, email)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			eventID, body.Category, body.Ordinal, body.Name, body.Email).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id, "name": body.Name, "category": body.Category, "ordinal": body.Ordinal})
	}
}

func handleDeleteParticipant(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}
		participantID, err := strconv.ParseInt(r.PathValue("participantID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid participant ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec("DELETE FROM participants WHERE id = $1 AND event_id = $2", participantID, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "participant not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListPreferences(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, role, myParticipantIDs, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		query := `SELECT p.id, p.from_id, pf.name, p.to_id, pt.name, p.weight
			FROM preferences p
			JOIN participants pf ON pf.id = p.from_id
			JOIN participants pt ON pt.id = p.to_id
			WHERE pf.event_id = $1
			ORDER BY p.id`
		args := []any{eventID}
		if role != "admin" {
			query = `SELECT p.id, p.from_id, pf.name, p.to_id, pt.name, p.weight
				FROM preferences p
				JOIN participants pf ON pf.id = p.from_id
				JOIN participants pt ON pt.id = p.to_id
				WHERE pf.event_id = $1 AND p.from_id = ANY($2)
				ORDER BY p.id`
			args = append(args, pq.Array(myParticipantIDs))
		}
		rows, err := db.Query(query, args...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type preference struct {
			ID       int64   `json:"id"`
			FromID   int64   `json:"from_id"`
			FromName string  `json:"from_name"`
			ToID     int64   `json:"to_id"`
			ToName   string  `json:"to_name"`
			Weight   float64 `json:"weight"`
		}
		var preferences []preference
		for rows.Next() {
			var p preference
			if err := rows.Scan(&p.ID, &p.FromID, &p.FromName, &p.ToID, &p.ToName, &p.Weight); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			preferences = append(preferences, p)
		}
		if preferences == nil {
			preferences = []preference{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(preferences)
	}
}

func handleCreatePreference(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, role, myParticipantIDs, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		var body struct {
			FromID int64    `json:"from_id"`
			ToID   int64    `json:"to_id"`
			Weight *float64 `json:"weight"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.FromID == body.ToID {
			http.Error(w, "participants must be different", http.StatusBadRequest)
			return
		}
		weight := 1.0
		if body.Weight != nil {
			if *body.Weight < 0 {
				http.Error(w, "weight must be non-negative", http.StatusBadRequest)
				return
			}
			weight = *body.Weight
		}
		if role != "admin" && !slices.Contains(myParticipantIDs, body.FromID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var id int64
		err := db.QueryRow(`
			INSERT INTO preferences (from_id, to_id, weight)
			SELECT pf.id, pt.id, $3
			FROM participants pf
			JOIN participants pt ON pt.id = $2 AND pt.event_id = $4
			WHERE pf.id = $1 AND pf.event_id = $4
			ON CONFLICT (from_id, to_id) DO UPDATE SET weight = EXCLUDED.weight
			RETURNING id`, body.FromID, body.ToID, weight, eventID).Scan(&id)
		if err == sql.ErrNoRows {
			http.Error(w, "participants not found in event", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id})
	}
}

func handleDeletePreference(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, role, myParticipantIDs, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		preferenceID, err := strconv.ParseInt(r.PathValue("preferenceID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid preference ID", http.StatusBadRequest)
			return
		}
		query := `DELETE FROM preferences WHERE id = $1
			AND from_id IN (SELECT id FROM participants WHERE event_id = $2)`
		args := []any{preferenceID, eventID}
		if role != "admin" {
			query = `DELETE FROM preferences WHERE id = $1 AND from_id = ANY($2)`
			args = []any{preferenceID, pq.Array(myParticipantIDs)}
		}
		result, err := db.Exec(query, args...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "preference not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListRounds(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, _, _, ok := requireEventMember(db, w, r)
		if !ok {
			return
		}
		rows, err := db.Query(`
			SELECT round_no, groups, total_score, solver, status, created_at
			FROM rounds WHERE event_id = $1 ORDER BY round_no`, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type round struct {
			RoundNo    int             `json:"round_no"`
			Groups     json.RawMessage `json:"groups"`
			TotalScore float64         `json:"total_score"`
			Solver     string          `json:"solver"`
			Status     string          `json:"status"`
			CreatedAt  time.Time       `json:"created_at"`
		}
		var rounds []round
		for rows.Next() {
			var rd round
			if err := rows.Scan(&rd.RoundNo, &rd.Groups, &rd.TotalScore, &rd.Solver, &rd.Status, &rd.CreatedAt); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			rounds = append(rounds, rd)
		}
		if rounds == nil {
			rounds = []round{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rounds)
	}
}

// loadRoster loads the event's participants and checks that ordinals
// run exactly 1..count within each category, so that solver ids line
// up with stored rows. A gap means the roster was edited inconsistently
// and the solve is refused.
func loadRoster(db *sql.DB, eventID int64) (match.Problem, map[int64]match.Person, error) {
	rows, err := db.Query("SELECT id, category, ordinal FROM participants WHERE event_id = $1 ORDER BY category, ordinal", eventID)
	if err != nil {
		return match.Problem{}, nil, err
	}
	defer rows.Close()

	byID := map[int64]match.Person{}
	var numA, numB, maxA, maxB int
	for rows.Next() {
		var id int64
		var category string
		var ordinal int
		if err := rows.Scan(&id, &category, &ordinal); err != nil {
			return match.Problem{}, nil, err
		}
		person := match.Person{Category: match.Category(category), Ordinal: ordinal}
		byID[id] = person
		switch person.Category {
		case match.CategoryA:
			numA++
			maxA = max(maxA, ordinal)
		case match.CategoryB:
			numB++
			maxB = max(maxB, ordinal)
		}
	}
	if maxA != numA || maxB != numB {
		return match.Problem{}, nil, fmt.Errorf("participant ordinals must be contiguous from 1 (have %d A up to %d, %d B up to %d)", numA, maxA, numB, maxB)
	}
	return match.Problem{NumA: numA, NumB: numB}, byID, nil
}

func loadEdges(db *sql.DB, eventID int64, byID map[int64]match.Person) ([]match.Edge, error) {
	rows, err := db.Query(`
		SELECT p.from_id, p.to_id, p.weight
		FROM preferences p
		JOIN participants pf ON pf.id = p.from_id
		WHERE pf.event_id = $1
		ORDER BY p.id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []match.Edge
	for rows.Next() {
		var fromID, toID int64
		var weight float64
		if err := rows.Scan(&fromID, &toID, &weight); err != nil {
			return nil, err
		}
		from, okFrom := byID[fromID]
		to, okTo := byID[toID]
		if !okFrom || !okTo {
			return nil, fmt.Errorf("preference references unknown participant (%d -> %d)", fromID, toID)
		}
		edges = append(edges, match.Edge{From: from, To: to, Weight: weight})
	}
	return edges, nil
}

// penaltySet rebuilds the previous round's grouping and collects its
// satisfied one-directional preferences. Those pairs are discouraged
// from recurring so that the next round favors fresh encounters while
// mutual matches stay untouched.
func penaltySet(db *sql.DB, eventID int64, roundNo int, base *graph.Graph) (match.PenaltySet, error) {
	var groupsJSON []byte
	err := db.QueryRow("SELECT groups FROM rounds WHERE event_id = $1 AND round_no = $2", eventID, roundNo).Scan(&groupsJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("round %d has no stored result", roundNo)
	}
	if err != nil {
		return nil, err
	}
	var prior match.Partition
	if err := json.Unmarshal(groupsJSON, &prior); err != nil {
		return nil, fmt.Errorf("round %d result is unreadable: %w", roundNo, err)
	}

	penalties := match.PenaltySet{}
	for i, group := range prior {
		for _, single := range base.ScoreGroup(group, i+1).Singles {
			penalties[single] = struct{}{}
		}
	}
	return penalties, nil
}

func handleSolve(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, eventID, ok := requireEventAdmin(db, w, r)
		if !ok {
			return
		}

		ev, err := loadEvent(db, eventID)
		if err != nil {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}

		var body struct {
			Solver           string  `json:"solver"`
			Algorithm        string  `json:"algorithm"`
			Initial          string  `json:"initial"`
			Seed             *int64  `json:"seed"`
			MaxIterations    int     `json:"max_iterations"`
			NumRestarts      int     `json:"num_restarts"`
			TempStart        float64 `json:"temp_start"`
			TempEnd          float64 `json:"temp_end"`
			CoolingRate      float64 `json:"cooling_rate"`
			TimeLimitSeconds int     `json:"time_limit_seconds"`
			RoundNo          int     `json:"round_no"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.Solver == "" {
			body.Solver = "heuristic"
		}
		if body.RoundNo < 1 {
			body.RoundNo = 1
		}

		prob, byID, err := loadRoster(db, eventID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		prob.GroupSize = ev.GroupSize
		prob.Balanced = ev.Balanced
		prob.Pairing = ev.Pairing
		if prob.Total() == 0 {
			http.Error(w, "event has no participants", http.StatusBadRequest)
			return
		}
		if err := prob.Check(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		edges, err := loadEdges(db, eventID, byID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := prob.CheckEdges(edges); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		opts := graph.Options{
			MutualWeight:  ev.MutualWeight,
			Weighted:      ev.Weighted,
			PenaltyWeight: ev.PenaltyWeight,
		}
		if body.RoundNo > 1 {
			base := graph.New(edges, graph.Options{MutualWeight: ev.MutualWeight, Weighted: ev.Weighted})
			penalties, err := penaltySet(db, eventID, body.RoundNo-1, base)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			opts.Penalties = penalties
		}
		g := graph.New(edges, opts)

		var partition match.Partition
		var status string
		var warnings []string
		detail := map[string]any{}

		switch body.Solver {
		case "heuristic":
			params := solver.DefaultParams
			if body.Algorithm != "" {
				params.Algorithm = body.Algorithm
			}
			if body.Initial != "" {
				params.Initial = body.Initial
			}
			if body.MaxIterations > 0 {
				params.MaxIterations = body.MaxIterations
			}
			if body.NumRestarts > 0 {
				params.NumRestarts = body.NumRestarts
			}
			if body.TempStart > 0 {
				params.TempStart = body.TempStart
			}
			if body.TempEnd > 0 {
				params.TempEnd = body.TempEnd
			}
			if body.CoolingRate > 0 {
				params.CoolingRate = body.CoolingRate
			}
			seed := time.Now().UnixNano()
			if body.Seed != nil {
				seed = *body.Seed
			}
			rng := rand.New(rand.NewSource(seed))

			res, err := solver.New(g, prob, params, rng).Solve()
			warnings = res.Warnings
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			partition = res.Partition
			status = "completed"
			detail["iterations"] = res.Iterations
			detail["restarts"] = res.Restarts
			detail["elapsed_ms"] = res.Elapsed.Milliseconds()

		case "exact":
			limit := 300 * time.Second
			if body.TimeLimitSeconds > 0 {
				limit = time.Duration(body.TimeLimitSeconds) * time.Second
			}
			res, err := milp.New(g, prob, milp.NewSimplexBackend(), limit).Solve()
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			status = string(res.Status)
			detail["objective"] = res.Objective
			detail["backend"] = res.Backend
			detail["elapsed_ms"] = res.Elapsed.Milliseconds()
			if res.Partition == nil {
				w.Header().Set("Content-Type", "application/json")
				if err := json.NewEncoder(w).Encode(map[string]any{"status": status, "detail": detail}); err != nil {
					log.Println("failed to encode solve status:", err)
				}
				return
			}
			partition = res.Partition

		default:
			http.Error(w, "solver must be heuristic or exact", http.StatusBadRequest)
			return
		}

		stats := g.ScorePartition(partition)

		groupsJSON, err := json.Marshal(partition)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, err = db.Exec(`
			INSERT INTO rounds (event_id, round_no, groups, total_score, solver, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (event_id, round_no) DO UPDATE
			SET groups = EXCLUDED.groups, total_score = EXCLUDED.total_score,
			    solver = EXCLUDED.solver, status = EXCLUDED.status, created_at = now()`,
			eventID, body.RoundNo, groupsJSON, stats.TotalScore, body.Solver, status)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if warnings == nil {
			warnings = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"round_no": body.RoundNo,
			"groups":   partition,
			"stats":    stats,
			"status":   status,
			"warnings": warnings,
			"detail":   detail,
		}); err != nil {
			log.Println("failed to encode solve result:", err)
		}
	}
}
