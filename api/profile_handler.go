package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimastyle/nima-backend/models"
	"github.com/nimastyle/nima-backend/utils"
)

const maxProfileUpload = 20 << 20 // 20 MB across all photos

var validGenders = map[string]bool{
	models.GenderMale:   true,
	models.GenderFemale: true,
	models.GenderUnisex: true,
}

var validBudgets = map[string]bool{
	models.BudgetLow:     true,
	models.BudgetMid:     true,
	models.BudgetPremium: true,
}

// GetProfile returns the authenticated user with presigned photo URLs
func (s *Server) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var user models.User
	err := utils.GetCollection(utils.ColUsers).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	primaryURL := ""
	if user.PrimaryPhotoKey != "" {
		if url, err := utils.GetPresignedURL(ctx, user.PrimaryPhotoKey); err == nil {
			primaryURL = url
		}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"user":              user,
		"photo_urls":        utils.PresignImageURLs(ctx, user.PhotoKeys),
		"primary_photo_url": primaryURL,
	})
}

// UpdateProfile handles the onboarding form: stylist profile fields plus
// reference photos. Updates for one user are serialized under a keyed lock so
// two concurrent uploads can't interleave their photo lists.
func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var logMsg strings.Builder
	defer utils.FlushLog(&logMsg)

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := r.ParseMultipartForm(maxProfileUpload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	unlock := s.ProfileLocks.Lock(userID.Hex())
	defer unlock()

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	set := bson.M{"updated_at": time.Now()}

	if v := strings.TrimSpace(r.FormValue("first_name")); v != "" {
		set["first_name"] = v
	}
	if v := strings.TrimSpace(strings.ToLower(r.FormValue("gender"))); v != "" {
		if !validGenders[v] {
			utils.RespondError(w, http.StatusBadRequest, "gender must be male, female or unisex")
			return
		}
		set["gender"] = v
	}
	if v := strings.TrimSpace(strings.ToLower(r.FormValue("budget_range"))); v != "" {
		if !validBudgets[v] {
			utils.RespondError(w, http.StatusBadRequest, "budget_range must be low, mid or premium")
			return
		}
		set["budget_range"] = v
	}
	if v := r.FormValue("style_preferences"); v != "" {
		var prefs []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				prefs = append(prefs, strings.ToLower(p))
			}
		}
		set["style_preferences"] = prefs
	}

	var newKeys []string
	if r.MultipartForm != nil {
		for i, fh := range r.MultipartForm.File["photos"] {
			file, err := fh.Open()
			if err != nil {
				utils.AddToLogMessage(&logMsg, "Profile %s: failed to open upload %d: %v", userID.Hex(), i, err)
				continue
			}
			key := fmt.Sprintf("user_photos/%s/%d_%d.jpg", userID.Hex(), time.Now().UnixNano(), i)
			contentType := fh.Header.Get("Content-Type")
			if contentType == "" {
				contentType = "image/jpeg"
			}
			_, err = utils.UploadFileToS3(ctx, file, key, contentType)
			file.Close()
			if err != nil {
				utils.AddToLogMessage(&logMsg, "Profile %s: failed to upload photo %d: %v", userID.Hex(), i, err)
				continue
			}
			newKeys = append(newKeys, key)
		}
	}

	update := bson.M{"$set": set}
	if len(newKeys) > 0 {
		update["$push"] = bson.M{"photo_keys": bson.M{"$each": newKeys}}
	}

	users := utils.GetCollection(utils.ColUsers)
	if _, err := users.UpdateOne(ctx, bson.M{"_id": userID}, update); err != nil {
		log.Printf("Profile update failed for %s: %v", userID.Hex(), err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	// Re-read to settle the primary photo and the onboarding flag against
	// the merged state, not the request's partial view.
	var user models.User
	if err := users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	followUp := bson.M{}
	if requested := strings.TrimSpace(r.FormValue("primary_photo_key")); requested != "" {
		if containsKey(user.PhotoKeys, requested) {
			followUp["primary_photo_key"] = requested
		} else {
			utils.RespondError(w, http.StatusBadRequest, "primary_photo_key is not one of your photos")
			return
		}
	} else if user.PrimaryPhotoKey == "" && len(user.PhotoKeys) > 0 {
		followUp["primary_photo_key"] = user.PhotoKeys[0]
	}
	if !user.OnboardingDone && user.FirstName != "" && user.Gender != "" && user.BudgetRange != "" {
		followUp["onboarding_done"] = true
	}
	if len(followUp) > 0 {
		if _, err := users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": followUp}); err != nil {
			log.Printf("Profile follow-up update failed for %s: %v", userID.Hex(), err)
		}
		if err := users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
			return
		}
	}

	utils.AddToLogMessage(&logMsg, "Profile %s updated: %d new photos", userID.Hex(), len(newKeys))
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"user":       user,
		"photo_urls": utils.PresignImageURLs(ctx, user.PhotoKeys),
	})
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
