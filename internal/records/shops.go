package records

import "strings"

const shopMatchMinLen = 3

// matchShop resolves name against the directory using the lookup convention
// shared by all Repo implementations: exact normalized match first, then
// substring containment in either direction for names of at least three
// characters.
func matchShop(shops []ShopContact, name string) (ShopContact, bool) {
	needle := normalizeShopName(name)
	if needle == "" {
		return ShopContact{}, false
	}

	for _, shop := range shops {
		if normalizeShopName(shop.Name) == needle {
			return shop, true
		}
	}

	if len(needle) < shopMatchMinLen {
		return ShopContact{}, false
	}
	for _, shop := range shops {
		candidate := normalizeShopName(shop.Name)
		if len(candidate) < shopMatchMinLen {
			continue
		}
		if strings.Contains(candidate, needle) || strings.Contains(needle, candidate) {
			return shop, true
		}
	}
	return ShopContact{}, false
}

func normalizeShopName(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(raw))), " ")
}
